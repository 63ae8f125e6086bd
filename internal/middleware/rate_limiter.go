package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"communityhub/internal/common"
	"communityhub/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter 限流器
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ============================================================================
// 内存限流（单实例）
// ============================================================================

// MemoryLimiter 进程内令牌桶限流器，每个 key 一个 rate.Limiter
//
// 桶容量为 limit，每 window/limit 补充一个令牌，与 Redis 固定窗口的平均速率一致。
type MemoryLimiter struct {
	limit    int
	every    rate.Limit
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	now      func() time.Time
}

// NewMemoryLimiter 创建内存限流器
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    limit,
		every:    rate.Every(window / time.Duration(limit)),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Allow 检查是否允许请求
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	return l.limiterFor(key, now).AllowN(now, 1), nil
}

func (l *MemoryLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		l.evict(now)
		lim = rate.NewLimiter(l.every, l.limit)
		l.limiters[key] = lim
	}
	return lim
}

// evict 清理令牌已补满的限流器，调用方持有锁
func (l *MemoryLimiter) evict(now time.Time) {
	if len(l.limiters) < 10000 {
		return
	}
	for k, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.limit) {
			delete(l.limiters, k)
		}
	}
}

// ============================================================================
// Redis 限流（多实例共享）
// ============================================================================

// RedisLimiter 基于 INCR + EXPIRE 的分布式限流器
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow 检查是否允许请求
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("限流计数失败: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// ============================================================================
// Gin 中间件
// ============================================================================

// RateLimitMiddleware 限流中间件，按用户 ID 或客户端 IP 计数；限流器故障时放行
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("限流器不可用", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "60")
			common.AbortWithError(c, common.CodeTooManyRequests, "")
			return
		}
		c.Next()
	}
}
