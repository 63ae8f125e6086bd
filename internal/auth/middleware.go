package auth

import (
	"context"
	"errors"

	"communityhub/internal/common"
	"communityhub/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserIDKey gin 上下文中的用户 ID 键
const UserIDKey = "user_id"

// AdminChecker 管理员判定，通常由用户记录提供
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if token == "" {
			common.ResponseUnauthorized(c, "缺少认证令牌")
			c.Abort()
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.WithContext(c.Request.Context()).Debug("令牌校验失败", zap.Error(err))
			common.ResponseUnauthorized(c, "令牌无效或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// RequireAdmin 管理员检查中间件，必须挂在 AuthMiddleware 之后
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			common.ResponseUnauthorized(c, "")
			c.Abort()
			return
		}

		ok, err := checker.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			var be *common.BusinessError
			if errors.As(err, &be) && be.Code == common.CodeUserNotFound {
				common.ResponseForbidden(c, "")
				c.Abort()
				return
			}
			_ = c.Error(err)
			common.AbortWithError(c, common.CodeInternalError, "")
			return
		}
		if !ok {
			common.ResponseForbidden(c, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID 当前请求的用户 ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
