package main

// @title CommunityHub API
// @version 1.0
// @description 社区内容审核与信任评分服务 API
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"communityhub/api"
	"communityhub/api/docs"
	"communityhub/internal/audit"
	"communityhub/internal/auth"
	"communityhub/internal/community"
	"communityhub/internal/config"
	"communityhub/internal/infra"
	"communityhub/internal/infra/queue"
	"communityhub/internal/logger"
	"communityhub/internal/moderation"
	"communityhub/internal/review"
	"communityhub/internal/tracing"
	"communityhub/internal/worker"
	"communityhub/internal/worker/handlers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, os.Getenv("APP_CONFIG_FILE"))
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 链路追踪
	shutdownTracing, err := tracing.Setup(context.Background(), "communityhub", cfg.Tracing.Environment, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Fatal("初始化链路追踪失败", zap.Error(err))
	}

	// 4. 数据库
	db, err := infra.OpenDatabase(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		models := append(community.Models(), &audit.Entry{})
		if err := infra.AutoMigrate(db, models...); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("跳过自动迁移（配置已禁用）")
	}

	// 5. Redis（可选）
	redisCfg := api.NormalizeRedisConfig(cfg.Redis)
	var rdb redis.UniversalClient
	if api.RedisEnabled(redisCfg) {
		rdb, err = infra.OpenRedis(&redisCfg)
		if err != nil {
			logger.Warn("Redis 不可用，令牌黑名单、分布式限流与后台任务将停用", zap.Error(err))
			rdb = nil
		}
	}

	// 6. 审核策略与服务
	policy, err := loadPolicy(cfg.Moderation)
	if err != nil {
		logger.Fatal("加载审核策略失败", zap.Error(err))
	}
	pipeline, err := moderation.NewPipeline(policy)
	if err != nil {
		logger.Fatal("审核策略无效", zap.Error(err))
	}

	communitySvc := community.NewService(db, pipeline, policy.ReportThreshold, logger.Get())
	reviewSvc := review.NewService(db, logger.Get())
	auditLog := audit.NewLogger(db)
	reviewSvc.SetAuditLogger(auditLog)

	// 7. 后台任务
	var (
		workerServer *worker.Server
		queueClient  *queue.Client
	)
	if cfg.Worker.Enabled && rdb != nil {
		queueClient = queue.NewClient(&redisCfg)
		communitySvc.SetReportChecker(queueClient)

		handler := handlers.NewModerationHandler(communitySvc, reviewSvc, logger.Get().Named("worker"))
		workerServer, err = worker.NewServer(&redisCfg, cfg.Worker, handler, logger.Get().Named("worker"))
		if err != nil {
			logger.Fatal("创建 Worker 失败", zap.Error(err))
		}
		if err := workerServer.Start(); err != nil {
			logger.Fatal("Worker 服务器启动失败", zap.Error(err))
		}
	}

	// 8. HTTP 服务器
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	gin.SetMode(cfg.Server.Mode)
	router := api.SetupRouter(api.Dependencies{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Community: communitySvc,
		Review:    reviewSvc,
		Audit:     auditLog,
		Verifier:  auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, rdb),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, "http.server"),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	gracefulShutdown(server, workerServer, func(ctx context.Context) {
		if queueClient != nil {
			_ = queueClient.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		if err := infra.CloseDatabase(db); err != nil {
			logger.Error("数据库关闭异常", zap.Error(err))
		}
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("链路追踪关闭异常", zap.Error(err))
		}
	})
}

// loadPolicy 读取策略文件并套用配置中的阈值覆盖
func loadPolicy(cfg config.ModerationConfig) (moderation.Policy, error) {
	policy := moderation.DefaultPolicy()
	if cfg.PolicyPath != "" {
		p, err := moderation.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return moderation.Policy{}, err
		}
		policy = p
		logger.Info("已加载审核策略文件", zap.String("path", cfg.PolicyPath), zap.Int("rules", len(policy.Rules)))
	}
	if cfg.ReviewThreshold > 0 {
		policy.ReviewThreshold = cfg.ReviewThreshold
	}
	if cfg.ReportThreshold > 0 {
		policy.ReportThreshold = cfg.ReportThreshold
	}
	return policy, policy.Validate()
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		} else {
			fmt.Printf("已加载环境变量文件: %s\n", path)
		}
	}
}

// resolveEnvPath 从当前工作目录向上查找 .env
func resolveEnvPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir := filepath.Clean(wd)
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server, workerServer *worker.Server, cleanup func(ctx context.Context)) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if workerServer != nil {
		workerServer.Shutdown()
	}
	cleanup(ctx)

	logger.Info("服务器已安全关闭")
}

