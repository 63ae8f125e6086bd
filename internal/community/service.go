package community

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"communityhub/internal/common"
	"communityhub/internal/logger"
	"communityhub/internal/metrics"
	"communityhub/internal/moderation"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxContentLength 帖子正文最大字符数
const MaxContentLength = 5000

// MaxImages 单帖图片数量上限
const MaxImages = 10

var (
	ErrEmptyContent   = common.NewBusinessError(common.CodeInvalidRequest, "内容不能为空")
	ErrContentTooLong = common.NewBusinessError(common.CodeInvalidRequest, fmt.Sprintf("内容不能超过 %d 个字符", MaxContentLength))
	ErrTooManyImages  = common.NewBusinessError(common.CodeInvalidRequest, fmt.Sprintf("图片不能超过 %d 张", MaxImages))
	ErrContentBlocked = common.NewBusinessError(common.CodeContentBlocked, moderation.BlockedReason)
	ErrUserNotFound   = common.NewBusinessError(common.CodeUserNotFound, "")
	ErrPostNotFound   = common.NewBusinessError(common.CodePostNotFound, "")
	ErrInvalidReport  = common.NewBusinessError(common.CodeInvalidRequest, "举报必须且只能指定帖子或用户之一")
	ErrInvalidReason  = common.NewBusinessError(common.CodeInvalidRequest, "举报原因无效")
	ErrSelfReport     = common.NewBusinessError(common.CodeInvalidRequest, "不能举报自己")
	ErrUserExists     = common.NewBusinessError(common.CodeConflict, "用户名或邮箱已被占用")
	ErrInvalidUser    = common.NewBusinessError(common.CodeInvalidRequest, "用户名、邮箱和账户类型必须有效")
)

// ReportChecker 举报阈值检查调度器，通常由后台任务队列实现
type ReportChecker interface {
	EnqueueReportCheck(ctx context.Context, postID string) error
}

// Service 社区内容服务：内容检查、发帖、举报
type Service struct {
	db              *gorm.DB
	pipeline        *moderation.Pipeline
	reportThreshold int
	checker         ReportChecker
	logger          *zap.Logger
	now             func() time.Time
}

// NewService 创建社区服务
func NewService(db *gorm.DB, pipeline *moderation.Pipeline, reportThreshold int, log *zap.Logger) *Service {
	if reportThreshold <= 0 {
		reportThreshold = moderation.DefaultReportThreshold
	}
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		db:              db,
		pipeline:        pipeline,
		reportThreshold: reportThreshold,
		logger:          log.Named("community"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetReportChecker 设置举报检查调度器，为空时举报后同步检查
func (s *Service) SetReportChecker(checker ReportChecker) {
	s.checker = checker
}

// ReportThreshold 当前举报阈值
func (s *Service) ReportThreshold() int {
	return s.reportThreshold
}

// ============================================================================
// 用户
// ============================================================================

// RegisterUserRequest 注册请求，仅用于本地开发和测试数据准备
type RegisterUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccountType string `json:"accountType"`
	IsAdmin     bool   `json:"isAdmin"`
}

// RegisterUser 创建用户
func (s *Service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	accountType := moderation.AccountIndividual
	if req.AccountType != "" {
		t, ok := moderation.ParseAccountType(req.AccountType)
		if !ok {
			return nil, ErrInvalidUser
		}
		accountType = t
	}
	if username == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidUser
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	user := &User{
		Username:    username,
		Email:       email,
		AccountType: accountType,
		IsAdmin:     req.IsAdmin,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// GetUser 获取用户
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// IsAdmin 判断用户是否为管理员
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// AccountInput 根据用户记录构造账户风险输入
func (s *Service) AccountInput(ctx context.Context, userID string) (moderation.AccountRiskInput, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return moderation.AccountRiskInput{}, err
	}
	return moderation.AccountRiskInput{
		AccountAgeDays: user.AgeDays(s.now()),
		IsAdmin:        user.IsAdmin,
		AccountType:    user.AccountType,
	}, nil
}

// ============================================================================
// 内容检查与发帖
// ============================================================================

// CheckContentRequest 内容预检请求
type CheckContentRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// CheckContent 对待提交内容给出审核决策，不落库
func (s *Service) CheckContent(ctx context.Context, userID string, req CheckContentRequest) (moderation.Decision, error) {
	if _, err := validateContent(req.Content, req.Images); err != nil {
		return moderation.Decision{}, err
	}

	account, err := s.AccountInput(ctx, userID)
	if err != nil {
		return moderation.Decision{}, err
	}

	d := s.pipeline.DecideContext(ctx, req.Content, account)
	metrics.RecordDecision("check", d.Blocked, d.NeedsReview, d.RiskScore, d.FlagStrings())
	if d.Blocked {
		logger.WithContext(ctx).Info("内容预检被拦截",
			zap.String("user_id", userID),
			zap.Int("risk_score", d.RiskScore),
			zap.Strings("flags", d.FlagStrings()),
		)
	}
	return d, nil
}

// CreatePostRequest 发帖请求
type CreatePostRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// CreatePost 发帖
//
// 被拦截的内容不落库，返回 ErrContentBlocked 与决策；需复核的内容正常发布并进入审核队列。
// 审核使用原始文本，落库的是去除首尾空白后的正文。
func (s *Service) CreatePost(ctx context.Context, userID string, req CreatePostRequest) (*Post, moderation.Decision, error) {
	content, err := validateContent(req.Content, req.Images)
	if err != nil {
		return nil, moderation.Decision{}, err
	}

	account, err := s.AccountInput(ctx, userID)
	if err != nil {
		return nil, moderation.Decision{}, err
	}

	d := s.pipeline.DecideContext(ctx, req.Content, account)
	metrics.RecordDecision("post", d.Blocked, d.NeedsReview, d.RiskScore, d.FlagStrings())
	if d.Blocked {
		logger.WithContext(ctx).Info("发帖被拦截",
			zap.String("user_id", userID),
			zap.Int("risk_score", d.RiskScore),
			zap.Strings("flags", d.FlagStrings()),
		)
		return nil, d, ErrContentBlocked
	}

	post := &Post{
		AuthorID:        userID,
		Content:         content,
		Images:          encodeStrings(req.Images),
		RiskScore:       d.RiskScore,
		ModerationFlags: encodeStrings(d.FlagStrings()),
	}
	if d.NeedsReview {
		now := s.now()
		post.IsFlagged = true
		post.FlaggedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, d, fmt.Errorf("保存帖子失败: %w", err)
	}

	if d.NeedsReview {
		s.logger.Info("帖子进入审核队列",
			zap.String("post_id", post.ID),
			zap.Int("risk_score", d.RiskScore),
			zap.Strings("flags", d.FlagStrings()),
		)
		s.refreshQueueDepth(ctx)
	}
	return post, d, nil
}

// GetPost 获取帖子
func (s *Service) GetPost(ctx context.Context, postID string) (*Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询帖子失败: %w", err)
	}
	return &post, nil
}

func validateContent(content string, images []string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	if len(images) > MaxImages {
		return "", ErrTooManyImages
	}
	return content, nil
}

// ============================================================================
// 举报
// ============================================================================

// CreateReportRequest 举报请求，PostID 与 ReportedID 必须且只能填写一个
type CreateReportRequest struct {
	PostID     string `json:"postId"`
	ReportedID string `json:"reportedId"`
	Reason     string `json:"reason"`
	Details    string `json:"details,omitempty"`
}

// CreateReport 创建举报
func (s *Service) CreateReport(ctx context.Context, reporterID string, req CreateReportRequest) (*Report, error) {
	reason := ReportReason(strings.ToUpper(strings.TrimSpace(req.Reason)))
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}
	postID := strings.TrimSpace(req.PostID)
	reportedID := strings.TrimSpace(req.ReportedID)
	if (postID == "") == (reportedID == "") {
		return nil, ErrInvalidReport
	}

	report := &Report{
		ReporterID: reporterID,
		Reason:     reason,
		Details:    strings.TrimSpace(req.Details),
		Status:     ReportPending,
	}

	if postID != "" {
		post, err := s.GetPost(ctx, postID)
		if err != nil {
			return nil, err
		}
		if post.AuthorID == reporterID {
			return nil, ErrSelfReport
		}
		report.PostID = &post.ID
	} else {
		if reportedID == reporterID {
			return nil, ErrSelfReport
		}
		if _, err := s.GetUser(ctx, reportedID); err != nil {
			return nil, err
		}
		report.ReportedID = &reportedID
	}

	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("保存举报失败: %w", err)
	}
	metrics.ReportsCreatedTotal.WithLabelValues(string(reason)).Inc()

	if report.PostID != nil {
		s.scheduleReportCheck(ctx, *report.PostID)
	}
	return report, nil
}

// scheduleReportCheck 优先交给后台任务，入队失败时同步检查
func (s *Service) scheduleReportCheck(ctx context.Context, postID string) {
	if s.checker != nil {
		err := s.checker.EnqueueReportCheck(ctx, postID)
		if err == nil {
			return
		}
		s.logger.Warn("举报检查任务入队失败，改为同步检查", zap.String("post_id", postID), zap.Error(err))
	}
	if _, err := s.ApplyReportThreshold(ctx, postID); err != nil && !errors.Is(err, ErrPostNotFound) {
		s.logger.Error("举报阈值检查失败", zap.String("post_id", postID), zap.Error(err))
	}
}

// ApplyReportThreshold 待处理举报数达到阈值时将帖子标记为待复核
//
// 已在队列中的帖子保持原 FlaggedAt；已复核的帖子重新进入队列。返回帖子本次是否被放入队列。
// 帖子行锁与复核事务互斥，更新语句再次校验待处理举报数，并发复核关闭举报后不会重新入队。
func (s *Service) ApplyReportThreshold(ctx context.Context, postID string) (bool, error) {
	now := s.now()
	var (
		pending int64
		flagged bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := forUpdate(tx).Where("id = ?", postID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("查询帖子失败: %w", err)
		}
		if post.InQueue() {
			return nil
		}

		if err := tx.Model(&Report{}).
			Where("post_id = ? AND status = ?", postID, ReportPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("统计待处理举报失败: %w", err)
		}
		if pending < int64(s.reportThreshold) {
			return nil
		}

		stillPending := tx.Session(&gorm.Session{NewDB: true}).Model(&Report{}).
			Select("COUNT(*)").
			Where("post_id = ? AND status = ?", postID, ReportPending)
		res := tx.Model(&Post{}).
			Where("id = ?", postID).
			Where("NOT (is_flagged = ? AND reviewed_at IS NULL)", true).
			Where("(?) >= ?", stillPending, s.reportThreshold).
			Updates(map[string]interface{}{
				"is_flagged":  true,
				"flagged_at":  now,
				"reviewed_at": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("标记帖子失败: %w", res.Error)
		}
		flagged = res.RowsAffected > 0
		return nil
	})
	if err != nil || !flagged {
		return false, err
	}

	metrics.ReportThresholdFlagsTotal.Inc()
	s.logger.Info("举报数达到阈值，帖子进入审核队列",
		zap.String("post_id", postID),
		zap.Int64("pending_reports", pending),
	)
	s.refreshQueueDepth(ctx)
	return true, nil
}

// refreshQueueDepth 队列变化后同步更新队列深度指标，失败只记日志
func (s *Service) refreshQueueDepth(ctx context.Context) {
	var depth int64
	if err := s.db.WithContext(ctx).Model(&Post{}).
		Where("is_flagged = ? AND reviewed_at IS NULL", true).
		Count(&depth).Error; err != nil {
		s.logger.Warn("刷新审核队列深度失败", zap.Error(err))
		return
	}
	metrics.SetQueueDepth(depth)
}

// forUpdate 在支持行锁的数据库上加 FOR UPDATE
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// PostsWithPendingReports 返回仍有待处理举报的帖子 ID，用于阈值调整后的批量重算
func (s *Service) PostsWithPendingReports(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&Report{}).
		Where("status = ? AND post_id IS NOT NULL", ReportPending).
		Distinct().
		Order("post_id").
		Pluck("post_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询待处理举报失败: %w", err)
	}
	return ids, nil
}
