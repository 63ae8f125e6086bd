package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenRevoked = errors.New("令牌已失效")
	ErrInvalidToken = errors.New("无效的令牌")
)

// TokenVerifier 访问令牌校验器
//
// 令牌由账户服务签发；这里只做签名、签发方、类型和黑名单校验。
type TokenVerifier struct {
	secretKey   []byte
	issuer      string
	redisClient redis.UniversalClient // 为空时不检查黑名单
}

// NewTokenVerifier 创建令牌校验器
func NewTokenVerifier(secretKey, issuer string, redisClient redis.UniversalClient) *TokenVerifier {
	return &TokenVerifier{
		secretKey:   []byte(secretKey),
		issuer:      issuer,
		redisClient: redisClient,
	}
}

// TokenClaims JWT 声明
type TokenClaims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"token_type"` // access 或 refresh
	jwt.RegisteredClaims
}

// Verify 校验并解析访问令牌
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*TokenClaims, error) {
	if v.isRevoked(ctx, tokenString) {
		return nil, ErrTokenRevoked
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		return v.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("解析令牌失败: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.TokenType != "access" {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// isRevoked 检查令牌是否在黑名单中，Redis 故障时放行
func (v *TokenVerifier) isRevoked(ctx context.Context, tokenString string) bool {
	if v.redisClient == nil {
		return false
	}
	exists, err := v.redisClient.Exists(ctx, BlacklistKey(tokenString)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// BlacklistKey 黑名单键，由账户服务在注销时写入
func BlacklistKey(tokenString string) string {
	return "blacklist:token:" + tokenString
}

// ExtractTokenFromBearer 从 Bearer 令牌中提取纯令牌字符串
func ExtractTokenFromBearer(bearerToken string) string {
	const prefix = "Bearer "
	if len(bearerToken) > len(prefix) && strings.EqualFold(bearerToken[:len(prefix)], prefix) {
		return strings.TrimSpace(bearerToken[len(prefix):])
	}
	return ""
}
