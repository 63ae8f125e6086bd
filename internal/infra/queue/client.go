package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"communityhub/internal/config"
	"communityhub/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// RedisConnOpt 按 Redis 连接模式构造 asynq 连接参数
func RedisConnOpt(cfg *config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	default:
		return asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}
	}
}

// Client 审核任务入队客户端
type Client struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg *config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisConnOpt(cfg))}
}

// EnqueueReportCheck 投递举报阈值检查任务
//
// 检查本身是幂等的，重复投递只会多跑一次统计。
func (c *Client) EnqueueReportCheck(ctx context.Context, postID string) error {
	payload, err := json.Marshal(tasks.ReportThresholdPayload{PostID: postID})
	if err != nil {
		return fmt.Errorf("序列化任务载荷失败: %w", err)
	}

	task := asynq.NewTask(tasks.TypeReportThreshold, payload)
	if _, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue(tasks.QueueModeration),
	); err != nil {
		return fmt.Errorf("投递举报检查任务失败: %w", err)
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}
