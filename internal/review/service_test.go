package review

import (
	"context"
	"fmt"
	"testing"
	"time"

	"communityhub/internal/audit"
	"communityhub/internal/common"
	"communityhub/internal/community"
	"communityhub/internal/metrics"
	"communityhub/internal/moderation"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var baseTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:review_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(community.Models()...))
	return db
}

func setupReview(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	svc := NewService(db, zaptest.NewLogger(t))
	svc.now = func() time.Time { return baseTime.Add(time.Hour) }
	return svc, db
}

func seedAuthor(t *testing.T, db *gorm.DB) *community.User {
	t.Helper()
	u := &community.User{Username: "author", Email: "author@example.org", AccountType: moderation.AccountIndividual}
	require.NoError(t, db.Create(u).Error)
	return u
}

// seedFlaggedPost 创建一条在队列中的帖子
func seedFlaggedPost(t *testing.T, db *gorm.DB, authorID string, flaggedAt time.Time) *community.Post {
	t.Helper()
	p := &community.Post{
		AuthorID:  authorID,
		Content:   "buy cheap followers now",
		IsFlagged: true,
		FlaggedAt: &flaggedAt,
		RiskScore: 45,
		TimestampModel: common.TimestampModel{
			CreatedAt: flaggedAt,
		},
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedReports(t *testing.T, db *gorm.DB, postID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		pid := postID
		require.NoError(t, db.Create(&community.Report{
			ReporterID: uuid.NewString(),
			PostID:     &pid,
			Reason:     community.ReasonSpam,
			Status:     community.ReportPending,
		}).Error)
	}
}

func countReports(t *testing.T, db *gorm.DB, postID string, status community.ReportStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&community.Report{}).Where("post_id = ? AND status = ?", postID, status).Count(&n).Error)
	return n
}

func TestQueueOrderAndReports(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)

	older := seedFlaggedPost(t, db, author.ID, baseTime.Add(-2*time.Hour))
	newer := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, older.ID, 2)

	// 未标记的帖子不出现在队列中
	require.NoError(t, db.Create(&community.Post{AuthorID: author.ID, Content: "hello"}).Error)

	items, total, err := svc.Queue(context.Background(), common.DefaultPagination())
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	require.Equal(t, newer.ID, items[0].Post.ID)
	require.Equal(t, older.ID, items[1].Post.ID)
	require.Empty(t, items[0].Reports)
	require.Len(t, items[1].Reports, 2)
	require.NotNil(t, items[0].Author)
	require.Equal(t, "author", items[0].Author.Username)
}

func TestQueuePagination(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	for i := 0; i < 5; i++ {
		seedFlaggedPost(t, db, author.ID, baseTime.Add(time.Duration(i)*time.Minute))
	}

	items, total, err := svc.Queue(context.Background(), common.PaginationRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, items, 2)
	require.True(t, items[0].Post.FlaggedAt.Equal(baseTime.Add(2*time.Minute)))
}

func TestReviewApproveResolvesReports(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 3)

	res, err := svc.Review(context.Background(), "admin-1", ReviewRequest{PostID: post.ID, Action: "approve", Notes: "looks fine"})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.ResolvedReports)
	require.NotNil(t, res.Post)

	var got community.Post
	require.NoError(t, db.First(&got, "id = ?", post.ID).Error)
	require.False(t, got.IsFlagged)
	require.False(t, got.IsHidden)
	require.NotNil(t, got.ReviewedAt)
	require.Equal(t, "admin-1", got.ReviewedBy)
	require.Equal(t, "looks fine", got.ModerationNotes)

	require.Zero(t, countReports(t, db, post.ID, community.ReportPending))
	require.EqualValues(t, 3, countReports(t, db, post.ID, community.ReportResolved))

	depth, err := svc.QueueDepth(context.Background())
	require.NoError(t, err)
	require.Zero(t, depth)
}

func TestReviewApproveIsIdempotent(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 1)
	ctx := context.Background()

	_, err := svc.Review(ctx, "admin-1", ReviewRequest{PostID: post.ID, Action: "approve"})
	require.NoError(t, err)

	res, err := svc.Review(ctx, "admin-1", ReviewRequest{PostID: post.ID, Action: "approve"})
	require.NoError(t, err)
	require.Zero(t, res.ResolvedReports)

	var got community.Post
	require.NoError(t, db.First(&got, "id = ?", post.ID).Error)
	require.False(t, got.IsFlagged)
	require.False(t, got.IsHidden)
	require.EqualValues(t, 1, countReports(t, db, post.ID, community.ReportResolved))
}

func TestReviewHide(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 2)

	res, err := svc.Review(context.Background(), "admin-2", ReviewRequest{PostID: post.ID, Action: "hide", Notes: "scam"})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.ResolvedReports)

	var got community.Post
	require.NoError(t, db.First(&got, "id = ?", post.ID).Error)
	require.True(t, got.IsFlagged)
	require.True(t, got.IsHidden)
	require.NotNil(t, got.ReviewedAt)
	require.False(t, got.InQueue())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.HiddenPosts)
	require.EqualValues(t, 2, stats.ReportsByStatus["RESOLVED"])
	require.Zero(t, stats.PendingReports)
}

func TestReviewDeleteKeepsReports(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 3)

	res, err := svc.Review(context.Background(), "admin-3", ReviewRequest{PostID: post.ID, Action: "delete"})
	require.NoError(t, err)
	require.Nil(t, res.Post)
	require.EqualValues(t, 3, res.ResolvedReports)

	var n int64
	require.NoError(t, db.Model(&community.Post{}).Where("id = ?", post.ID).Count(&n).Error)
	require.Zero(t, n)

	// 举报随帖子删除一并关闭，记录保留
	require.EqualValues(t, 3, countReports(t, db, post.ID, community.ReportResolved))
	require.Zero(t, countReports(t, db, post.ID, community.ReportPending))

	var reports []community.Report
	require.NoError(t, db.Where("post_id = ?", post.ID).Find(&reports).Error)
	require.Len(t, reports, 3)
	for _, r := range reports {
		require.Equal(t, "admin-3", r.ReviewedBy)
		require.NotNil(t, r.ReviewedAt)
		require.True(t, r.ReviewedAt.Equal(baseTime.Add(time.Hour)))
	}

	_, err = svc.Review(context.Background(), "admin-3", ReviewRequest{PostID: post.ID, Action: "approve"})
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestReviewInvalidActionChangesNothing(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 2)

	for _, action := range []string{"", "ban", "remove", "approve-all", "APPROVE", " hide", "Delete"} {
		_, err := svc.Review(context.Background(), "admin", ReviewRequest{PostID: post.ID, Action: action})
		require.ErrorIs(t, err, ErrInvalidAction, action)
	}

	var got community.Post
	require.NoError(t, db.First(&got, "id = ?", post.ID).Error)
	require.True(t, got.InQueue())
	require.EqualValues(t, 2, countReports(t, db, post.ID, community.ReportPending))
}

func TestReviewUnknownPost(t *testing.T) {
	svc, _ := setupReview(t)

	_, err := svc.Review(context.Background(), "admin", ReviewRequest{PostID: "missing", Action: "hide"})
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestReviewMissingPostIDIsValidationError(t *testing.T) {
	svc, _ := setupReview(t)

	_, err := svc.Review(context.Background(), "admin", ReviewRequest{PostID: "  ", Action: "hide"})
	require.ErrorIs(t, err, ErrMissingPostID)
	require.Equal(t, 400, common.HTTPStatus(ErrMissingPostID.Code))
}

func TestReviewLeavesOtherPostsReports(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	a := seedFlaggedPost(t, db, author.ID, baseTime)
	b := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, a.ID, 2)
	seedReports(t, db, b.ID, 2)

	_, err := svc.Review(context.Background(), "admin", ReviewRequest{PostID: a.ID, Action: "hide"})
	require.NoError(t, err)
	require.EqualValues(t, 2, countReports(t, db, b.ID, community.ReportPending))
}

func TestResolveReport(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 1)
	ctx := context.Background()

	var report community.Report
	require.NoError(t, db.First(&report, "post_id = ?", post.ID).Error)

	_, err := svc.ResolveReport(ctx, "admin", report.ID, ResolveReportRequest{Status: "PENDING"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	got, err := svc.ResolveReport(ctx, "admin", report.ID, ResolveReportRequest{Status: "denied"})
	require.NoError(t, err)
	require.Equal(t, community.ReportDenied, got.Status)
	require.Equal(t, "admin", got.ReviewedBy)

	_, err = svc.ResolveReport(ctx, "admin", report.ID, ResolveReportRequest{Status: "APPROVED"})
	require.ErrorIs(t, err, ErrReportClosed)

	_, err = svc.ResolveReport(ctx, "admin", "missing", ResolveReportRequest{Status: "APPROVED"})
	require.ErrorIs(t, err, ErrReportNotFound)

	// 已处理的举报不会被复核动作改写
	_, err = svc.Review(ctx, "admin", ReviewRequest{PostID: post.ID, Action: "approve"})
	require.NoError(t, err)
	require.EqualValues(t, 1, countReports(t, db, post.ID, community.ReportDenied))
}

func TestListReports(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 3)
	ctx := context.Background()

	reports, total, err := svc.ListReports(ctx, "pending", common.DefaultPagination())
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, reports, 3)

	_, err = svc.Review(ctx, "admin", ReviewRequest{PostID: post.ID, Action: "hide"})
	require.NoError(t, err)

	reports, total, err = svc.ListReports(ctx, "PENDING", common.DefaultPagination())
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, reports)

	_, total, err = svc.ListReports(ctx, "", common.PaginationRequest{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)

	_, _, err = svc.ListReports(ctx, "ARCHIVED", common.DefaultPagination())
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"approve": ActionApprove, "hide": ActionHide, "delete": ActionDelete} {
		got, ok := ParseAction(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	for _, in := range []string{"archive", "APPROVE", " hide ", "Delete", ""} {
		_, ok := ParseAction(in)
		require.False(t, ok, in)
	}
}

func TestReviewWritesAuditTrail(t *testing.T) {
	svc, db := setupReview(t)
	require.NoError(t, db.AutoMigrate(&audit.Entry{}))
	auditLog := audit.NewLogger(db)
	svc.SetAuditLogger(auditLog)

	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 2)
	ctx := context.Background()

	_, err := svc.Review(ctx, "admin-7", ReviewRequest{PostID: post.ID, Action: "hide", Notes: "scam"})
	require.NoError(t, err)

	entries, total, err := auditLog.Query(ctx, audit.Filter{ResourceID: post.ID}, common.PaginationRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, audit.EventReviewHide, entries[0].Action)
	require.Equal(t, "admin-7", entries[0].ActorID)
	require.JSONEq(t, `{"notes":"scam","resolvedReports":2,"riskScore":45}`, string(entries[0].Details))
}

func TestReviewRollsBackWhenAuditFails(t *testing.T) {
	svc, db := setupReview(t)
	// audit_logs 表未迁移，写入审计必然失败
	svc.SetAuditLogger(audit.NewLogger(db))

	author := seedAuthor(t, db)
	post := seedFlaggedPost(t, db, author.ID, baseTime)
	seedReports(t, db, post.ID, 2)

	_, err := svc.Review(context.Background(), "admin", ReviewRequest{PostID: post.ID, Action: "approve"})
	require.Error(t, err)

	var got community.Post
	require.NoError(t, db.First(&got, "id = ?", post.ID).Error)
	require.True(t, got.InQueue())
	require.EqualValues(t, 2, countReports(t, db, post.ID, community.ReportPending))
}

func TestReviewRefreshesQueueDepthGauge(t *testing.T) {
	svc, db := setupReview(t)
	author := seedAuthor(t, db)
	first := seedFlaggedPost(t, db, author.ID, baseTime)
	seedFlaggedPost(t, db, author.ID, baseTime.Add(time.Minute))
	metrics.SetQueueDepth(0)

	_, err := svc.Review(context.Background(), "admin", ReviewRequest{PostID: first.ID, Action: "approve"})
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ModerationQueueDepth))
}
