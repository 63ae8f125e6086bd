package worker

import (
	"context"
	"fmt"

	"communityhub/internal/config"
	"communityhub/internal/infra/queue"
	"communityhub/internal/worker/handlers"
	"communityhub/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 后台任务服务器，包含任务处理与周期调度
type Server struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

func NewServer(
	redisCfg *config.RedisConfig,
	workerCfg config.WorkerConfig,
	handler *handlers.ModerationHandler,
	logger *zap.Logger,
) (*Server, error) {
	concurrency := workerCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	connOpt := queue.RedisConnOpt(redisCfg)
	srv := asynq.NewServer(
		connOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueModeration: 6,
				tasks.QueueDefault:    1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeReportThreshold, handler.HandleReportThreshold)
	mux.HandleFunc(tasks.TypeRefreshQueueDepth, handler.HandleRefreshQueueDepth)

	scheduler := asynq.NewScheduler(connOpt, nil)
	spec := fmt.Sprintf("@every %s", workerCfg.QueueGaugeInterval())
	if _, err := scheduler.Register(spec,
		asynq.NewTask(tasks.TypeRefreshQueueDepth, nil),
		asynq.Queue(tasks.QueueDefault),
		asynq.MaxRetry(0),
	); err != nil {
		return nil, fmt.Errorf("注册队列深度刷新任务失败: %w", err)
	}

	return &Server{
		server:    srv,
		scheduler: scheduler,
		mux:       mux,
		logger:    logger,
	}, nil
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	if err := s.scheduler.Start(); err != nil {
		s.server.Shutdown()
		return err
	}
	return nil
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.scheduler.Shutdown()
	s.server.Shutdown()
}
