package api

import (
	"time"

	_ "communityhub/api/docs"
	"communityhub/api/handlers/admin"
	"communityhub/api/handlers/moderation"
	"communityhub/api/handlers/posts"
	"communityhub/internal/audit"
	"communityhub/internal/auth"
	"communityhub/internal/community"
	"communityhub/internal/config"
	"communityhub/internal/metrics"
	"communityhub/internal/middleware"
	"communityhub/internal/review"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Dependencies 路由所需的服务与基础设施
type Dependencies struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     redis.UniversalClient // 可为空，此时使用进程内限流
	Community *community.Service
	Review    *review.Service
	Audit     *audit.Logger
	Verifier  *auth.TokenVerifier
}

// Handlers 处理器集合
type Handlers struct {
	Moderation *moderation.Handler
	Posts      *posts.PostHandler
	Reports    *posts.ReportHandler
	Users      *posts.UserHandler
	Review     *admin.ReviewHandler
	Audit      *admin.AuditHandler // 未配置审计日志时为空
}

// NewHandlers 创建处理器
func NewHandlers(deps Dependencies) *Handlers {
	h := &Handlers{
		Moderation: moderation.NewHandler(deps.Community),
		Posts:      posts.NewPostHandler(deps.Community),
		Reports:    posts.NewReportHandler(deps.Community),
		Users:      posts.NewUserHandler(deps.Community, deps.Audit),
		Review:     admin.NewReviewHandler(deps.Review, deps.Config.Moderation),
	}
	if deps.Audit != nil {
		h.Audit = admin.NewAuditHandler(deps.Audit)
	}
	return h
}

// SetupRouter 创建 gin 引擎并注册全部路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(),
		middleware.RequestIDMiddleware(),
		middleware.AccessLogMiddleware(),
		metrics.PrometheusMiddleware(),
		CORS(),
	)

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(deps.DB, deps.Redis))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	RegisterRoutes(router, deps, NewHandlers(deps))
	return router
}

// RegisterRoutes 注册业务路由，/api 与 /api/v1 指向同一组处理器
func RegisterRoutes(router *gin.Engine, deps Dependencies, h *Handlers) {
	authn := auth.AuthMiddleware(deps.Verifier)
	limiter := newLimiter(deps)

	for _, prefix := range []string{"/api", "/api/v1"} {
		group := router.Group(prefix)
		group.Use(authn)
		if limiter != nil {
			group.Use(middleware.RateLimitMiddleware(limiter))
		}
		registerAPIRoutes(group, deps, h)
	}
}

func registerAPIRoutes(api *gin.RouterGroup, deps Dependencies, h *Handlers) {
	api.POST("/moderation/check", h.Moderation.Check)

	api.POST("/posts", h.Posts.Create)
	api.GET("/posts/:id", h.Posts.Get)
	api.POST("/reports", h.Reports.Create)
	api.GET("/users/me", h.Users.Me)

	adminGroup := api.Group("/admin")
	adminGroup.Use(auth.RequireAdmin(deps.Community))
	{
		adminGroup.POST("/users", h.Users.Register)

		adminGroup.GET("/moderation/queue", h.Review.Queue)
		adminGroup.POST("/moderation/review", h.Review.Review)
		adminGroup.GET("/moderation/stats", h.Review.Stats)

		adminGroup.GET("/reports", h.Review.ListReports)
		adminGroup.POST("/reports/:id/resolve", h.Review.ResolveReport)

		if h.Audit != nil {
			adminGroup.GET("/audit", h.Audit.List)
		}
	}
}

// newLimiter 按配置选择限流器，Redis 可用时跨实例共享计数
func newLimiter(deps Dependencies) middleware.Limiter {
	perMinute := deps.Config.Server.RateLimitPerMinute
	if perMinute <= 0 {
		return nil
	}
	if deps.Redis != nil {
		return middleware.NewRedisLimiter(deps.Redis, perMinute, time.Minute)
	}
	return middleware.NewMemoryLimiter(perMinute, time.Minute)
}
