package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"communityhub/internal/community"
	"communityhub/internal/metrics"
	"communityhub/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ThresholdApplier 举报阈值检查，便于注入 mock
type ThresholdApplier interface {
	ApplyReportThreshold(ctx context.Context, postID string) (bool, error)
}

// QueueDepthReader 审核队列深度查询
type QueueDepthReader interface {
	QueueDepth(ctx context.Context) (int64, error)
}

type ModerationHandler struct {
	applier ThresholdApplier
	depth   QueueDepthReader
	logger  *zap.Logger
}

func NewModerationHandler(applier ThresholdApplier, depth QueueDepthReader, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{
		applier: applier,
		depth:   depth,
		logger:  logger,
	}
}

// HandleReportThreshold 检查帖子的待处理举报数，达到阈值时送入审核队列
func (h *ModerationHandler) HandleReportThreshold(ctx context.Context, t *asynq.Task) error {
	var p tasks.ReportThresholdPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.PostID == "" {
		return fmt.Errorf("post_id 为空: %w", asynq.SkipRetry)
	}

	flagged, err := h.applier.ApplyReportThreshold(ctx, p.PostID)
	if err != nil {
		if errors.Is(err, community.ErrPostNotFound) {
			h.logger.Info("帖子已删除，跳过举报检查", zap.String("post_id", p.PostID))
			return nil
		}
		h.logger.Error("举报阈值检查失败", zap.String("post_id", p.PostID), zap.Error(err))
		return err
	}

	if flagged {
		h.logger.Info("帖子因举报进入审核队列", zap.String("post_id", p.PostID))
	}
	return nil
}

// HandleRefreshQueueDepth 刷新审核队列深度指标
func (h *ModerationHandler) HandleRefreshQueueDepth(ctx context.Context, _ *asynq.Task) error {
	depth, err := h.depth.QueueDepth(ctx)
	if err != nil {
		return err
	}
	metrics.SetQueueDepth(depth)
	return nil
}
