package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"communityhub/internal/audit"
	"communityhub/internal/common"
	"communityhub/internal/community"
	"communityhub/internal/logger"
	"communityhub/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidAction  = common.NewBusinessError(common.CodeInvalidAction, "审核动作无效，可选值: approve, hide, delete")
	ErrPostNotFound   = community.ErrPostNotFound
	ErrReportNotFound = common.NewBusinessError(common.CodeReportNotFound, "")
	ErrReportClosed   = common.NewBusinessError(common.CodeReportClosed, "")
	ErrInvalidStatus  = common.NewBusinessError(common.CodeInvalidRequest, "举报状态无效")
	ErrMissingPostID  = common.NewBusinessError(common.CodeInvalidRequest, "postId 不能为空")
)

// Service 审核队列与复核服务
type Service struct {
	db     *gorm.DB
	audit  *audit.Logger // 可为空
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService 创建复核服务
func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		db:     db,
		logger: log.Named("review"),
		tracer: otel.Tracer("communityhub/internal/review"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditLogger 设置审计日志，复核与举报处理在同一事务内留痕
func (s *Service) SetAuditLogger(l *audit.Logger) {
	s.audit = l
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, actorID string, action audit.EventType, resource, resourceID string, details any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, actorID, action, resource, resourceID, details)
}

// forUpdate 在支持行锁的数据库上加 FOR UPDATE
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func inQueue(db *gorm.DB) *gorm.DB {
	return db.Where("is_flagged = ? AND reviewed_at IS NULL", true)
}

// ============================================================================
// 队列
// ============================================================================

// Queue 返回待复核帖子，按标记时间倒序、创建时间倒序
func (s *Service) Queue(ctx context.Context, page common.PaginationRequest) ([]QueueItem, int64, error) {
	ctx, span := s.tracer.Start(ctx, "review.Queue")
	defer span.End()

	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&community.Post{}).Scopes(inQueue).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计审核队列失败: %w", err)
	}

	var posts []community.Post
	if err := db.Scopes(inQueue, common.Paginate(page)).
		Order("flagged_at DESC").
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("查询审核队列失败: %w", err)
	}

	items := make([]QueueItem, 0, len(posts))
	if len(posts) == 0 {
		return items, total, nil
	}

	postIDs := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
	}

	var reports []community.Report
	if err := db.Where("post_id IN ? AND status = ?", postIDs, community.ReportPending).
		Order("created_at ASC").
		Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("查询待处理举报失败: %w", err)
	}
	byPost := make(map[string][]community.Report, len(posts))
	for _, r := range reports {
		byPost[*r.PostID] = append(byPost[*r.PostID], r)
	}

	var users []community.User
	if err := db.Where("id IN ?", authorIDs).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("查询作者失败: %w", err)
	}
	authors := make(map[string]*AuthorSummary, len(users))
	for _, u := range users {
		authors[u.ID] = &AuthorSummary{ID: u.ID, Username: u.Username, AccountType: u.AccountType}
	}

	for _, p := range posts {
		pending := byPost[p.ID]
		if pending == nil {
			pending = []community.Report{}
		}
		items = append(items, QueueItem{
			Post:    p,
			Author:  authors[p.AuthorID],
			Reports: pending,
		})
	}

	span.SetAttributes(attribute.Int64("review.queue_total", total))
	return items, total, nil
}

// QueueDepth 待复核帖子数量
func (s *Service) QueueDepth(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&community.Post{}).Scopes(inQueue).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("统计审核队列失败: %w", err)
	}
	return total, nil
}

// ============================================================================
// 复核
// ============================================================================

// Review 执行复核动作
//
// 帖子变更与待处理举报的关闭在同一事务内完成；动作无效时不做任何修改。
func (s *Service) Review(ctx context.Context, reviewerID string, req ReviewRequest) (*ReviewResult, error) {
	action, ok := ParseAction(req.Action)
	if !ok {
		return nil, ErrInvalidAction
	}
	postID := strings.TrimSpace(req.PostID)
	if postID == "" {
		return nil, ErrMissingPostID
	}

	ctx, span := s.tracer.Start(ctx, "review.Review", trace.WithAttributes(
		attribute.String("review.post_id", postID),
		attribute.String("review.action", string(action)),
	))
	defer span.End()

	now := s.now()
	result := &ReviewResult{PostID: postID, Action: action}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post community.Post
		if err := forUpdate(tx).Where("id = ?", postID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("查询帖子失败: %w", err)
		}

		switch action {
		case ActionApprove, ActionHide:
			post.IsFlagged = action == ActionHide
			post.IsHidden = action == ActionHide
			post.ReviewedAt = &now
			post.ReviewedBy = reviewerID
			post.ModerationNotes = strings.TrimSpace(req.Notes)
			if err := tx.Model(&community.Post{}).Where("id = ?", postID).Updates(map[string]interface{}{
				"is_flagged":       post.IsFlagged,
				"is_hidden":        post.IsHidden,
				"reviewed_at":      now,
				"reviewed_by":      reviewerID,
				"moderation_notes": post.ModerationNotes,
			}).Error; err != nil {
				return fmt.Errorf("更新帖子失败: %w", err)
			}
			result.Post = &post
		case ActionDelete:
			if err := tx.Where("id = ?", postID).Delete(&community.Post{}).Error; err != nil {
				return fmt.Errorf("删除帖子失败: %w", err)
			}
		}

		res := tx.Model(&community.Report{}).
			Where("post_id = ? AND status = ?", postID, community.ReportPending).
			Updates(map[string]interface{}{
				"status":      community.ReportResolved,
				"reviewed_by": reviewerID,
				"reviewed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("关闭举报失败: %w", res.Error)
		}
		result.ResolvedReports = res.RowsAffected

		return s.record(ctx, tx, reviewerID, audit.ReviewEvent(string(action)), audit.ResourcePost, postID, map[string]any{
			"notes":           strings.TrimSpace(req.Notes),
			"resolvedReports": res.RowsAffected,
			"riskScore":       post.RiskScore,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordReview(string(action), result.ResolvedReports)
	if depth, err := s.QueueDepth(ctx); err != nil {
		s.logger.Warn("刷新审核队列深度失败", zap.Error(err))
	} else {
		metrics.SetQueueDepth(depth)
	}
	logger.WithContext(ctx).Info("帖子复核完成",
		zap.String("post_id", postID),
		zap.String("action", string(action)),
		zap.String("reviewer_id", reviewerID),
		zap.Int64("resolved_reports", result.ResolvedReports),
	)
	return result, nil
}

// ============================================================================
// 举报
// ============================================================================

// ResolveReportRequest 单条举报处理请求
type ResolveReportRequest struct {
	Status string `json:"status"`
}

// ResolveReport 将单条待处理举报标记为 APPROVED 或 DENIED
func (s *Service) ResolveReport(ctx context.Context, reviewerID, reportID string, req ResolveReportRequest) (*community.Report, error) {
	status := community.ReportStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != community.ReportApproved && status != community.ReportDenied {
		return nil, ErrInvalidStatus
	}

	var report community.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", reportID).First(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReportNotFound
			}
			return fmt.Errorf("查询举报失败: %w", err)
		}
		if report.Status != community.ReportPending {
			return ErrReportClosed
		}

		now := s.now()
		report.Status = status
		report.ReviewedBy = reviewerID
		report.ReviewedAt = &now
		if err := tx.Model(&community.Report{}).
			Where("id = ? AND status = ?", reportID, community.ReportPending).
			Updates(map[string]interface{}{
				"status":      status,
				"reviewed_by": reviewerID,
				"reviewed_at": now,
			}).Error; err != nil {
			return fmt.Errorf("更新举报失败: %w", err)
		}

		return s.record(ctx, tx, reviewerID, audit.EventReportResolve, audit.ResourceReport, reportID, map[string]any{
			"status": status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("举报已处理",
		zap.String("report_id", reportID),
		zap.String("status", string(status)),
		zap.String("reviewer_id", reviewerID),
	)
	return &report, nil
}

// ListReports 按状态列出举报，状态为空时列出全部
func (s *Service) ListReports(ctx context.Context, status string, page common.PaginationRequest) ([]community.Report, int64, error) {
	st := community.ReportStatus(strings.ToUpper(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, 0, ErrInvalidStatus
	}

	db := s.db.WithContext(ctx).Model(&community.Report{}).Scopes(common.ByStatus(string(st))).Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计举报失败: %w", err)
	}

	reports := make([]community.Report, 0)
	if err := db.Scopes(common.Paginate(page)).
		Order("created_at DESC").
		Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("查询举报失败: %w", err)
	}
	return reports, total, nil
}

// Stats 审核概况
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{ReportsByStatus: map[string]int64{}}

	var err error
	if stats.QueueDepth, err = s.QueueDepth(ctx); err != nil {
		return nil, err
	}
	if err := db.Model(&community.Post{}).Where("is_hidden = ?", true).Count(&stats.HiddenPosts).Error; err != nil {
		return nil, fmt.Errorf("统计隐藏帖子失败: %w", err)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&community.Report{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计举报失败: %w", err)
	}
	for _, r := range rows {
		stats.ReportsByStatus[r.Status] = r.Count
	}
	stats.PendingReports = stats.ReportsByStatus[string(community.ReportPending)]
	return stats, nil
}
