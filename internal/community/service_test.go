package community

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"communityhub/internal/common"
	"communityhub/internal/metrics"
	"communityhub/internal/moderation"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:community_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))

	pipeline, err := moderation.NewPipeline(moderation.DefaultPolicy())
	require.NoError(t, err)

	svc := NewService(db, pipeline, 3, zaptest.NewLogger(t))
	svc.now = func() time.Time { return fixedNow }
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB, name string, ageDays int, typ moderation.AccountType, admin bool) *User {
	t.Helper()
	u := &User{
		Username:    name,
		Email:       name + "@example.org",
		AccountType: typ,
		IsAdmin:     admin,
		TimestampModel: common.TimestampModel{
			CreatedAt: fixedNow.Add(-time.Duration(ageDays) * 24 * time.Hour),
		},
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

type recordingChecker struct {
	postIDs []string
	err     error
}

func (r *recordingChecker) EnqueueReportCheck(ctx context.Context, postID string) error {
	r.postIDs = append(r.postIDs, postID)
	return r.err
}

func TestAccountInputFromUserRecord(t *testing.T) {
	svc, db := setupService(t)
	u := seedUser(t, db, "maria", 400, moderation.AccountCharity, false)

	in, err := svc.AccountInput(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, 400, in.AccountAgeDays)
	require.Equal(t, moderation.AccountCharity, in.AccountType)
	require.False(t, in.IsAdmin)

	_, err = svc.AccountInput(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCheckContentValidation(t *testing.T) {
	svc, db := setupService(t)
	u := seedUser(t, db, "tom", 10, moderation.AccountIndividual, false)

	_, err := svc.CheckContent(context.Background(), u.ID, CheckContentRequest{Content: "   "})
	require.ErrorIs(t, err, ErrEmptyContent)

	long := make([]rune, MaxContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.CheckContent(context.Background(), u.ID, CheckContentRequest{Content: string(long)})
	require.ErrorIs(t, err, ErrContentTooLong)
}

func TestCheckContentDecisions(t *testing.T) {
	svc, db := setupService(t)
	veteran := seedUser(t, db, "veteran", 400, moderation.AccountIndividual, false)
	newbie := seedUser(t, db, "newbie", 0, moderation.AccountIndividual, false)
	ctx := context.Background()

	d, err := svc.CheckContent(ctx, veteran.ID, CheckContentRequest{Content: "Had a lovely walk in the park today"})
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 0, d.RiskScore)

	d, err = svc.CheckContent(ctx, newbie.ID, CheckContentRequest{Content: "Had a lovely walk in the park today"})
	require.NoError(t, err)
	require.Equal(t, 25, d.RiskScore)
	require.False(t, d.NeedsReview)

	d, err = svc.CheckContent(ctx, veteran.ID, CheckContentRequest{Content: "I will kill you"})
	require.NoError(t, err)
	require.True(t, d.Blocked)
	require.Equal(t, moderation.BlockedReason, d.Reason)
}

func TestCreatePostBlockedIsNotStored(t *testing.T) {
	svc, db := setupService(t)
	u := seedUser(t, db, "angry", 400, moderation.AccountIndividual, false)

	post, d, err := svc.CreatePost(context.Background(), u.ID, CreatePostRequest{Content: "I will kill you"})
	require.ErrorIs(t, err, ErrContentBlocked)
	require.Nil(t, post)
	require.True(t, d.Blocked)

	var count int64
	require.NoError(t, db.Model(&Post{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreatePostFlagsRiskyContent(t *testing.T) {
	svc, db := setupService(t)
	u := seedUser(t, db, "seller", 0, moderation.AccountIndividual, false)

	post, d, err := svc.CreatePost(context.Background(), u.ID, CreatePostRequest{
		Content: "buy cheap followers now!!! call 555-1234",
		Images:  []string{"https://cdn.example.org/a.jpg"},
	})
	require.NoError(t, err)
	require.True(t, d.NeedsReview)
	require.True(t, post.IsFlagged)
	require.NotNil(t, post.FlaggedAt)
	require.True(t, post.FlaggedAt.Equal(fixedNow))
	require.Equal(t, 60, post.RiskScore)

	var stored Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	require.True(t, stored.InQueue())
	require.Contains(t, stored.FlagList(), "spam")
	require.Equal(t, []string{"https://cdn.example.org/a.jpg"}, stored.ImageURLs())
}

func TestCreatePostBenignNotFlagged(t *testing.T) {
	svc, db := setupService(t)
	u := seedUser(t, db, "gardener", 120, moderation.AccountIndividual, false)

	post, d, err := svc.CreatePost(context.Background(), u.ID, CreatePostRequest{Content: "Tomatoes are finally ripe"})
	require.NoError(t, err)
	require.False(t, d.NeedsReview)
	require.False(t, post.IsFlagged)
	require.Nil(t, post.FlaggedAt)
	require.Empty(t, post.FlagList())
}

func TestCreateReportValidation(t *testing.T) {
	svc, db := setupService(t)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	reporter := seedUser(t, db, "reporter", 100, moderation.AccountIndividual, false)
	ctx := context.Background()

	post, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Lost cat near the bakery"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     CreateReportRequest
		wantErr error
	}{
		{"未指定目标", CreateReportRequest{Reason: "SPAM"}, ErrInvalidReport},
		{"同时指定两个目标", CreateReportRequest{PostID: post.ID, ReportedID: author.ID, Reason: "SPAM"}, ErrInvalidReport},
		{"原因无效", CreateReportRequest{PostID: post.ID, Reason: "BORING"}, ErrInvalidReason},
		{"帖子不存在", CreateReportRequest{PostID: "nope", Reason: "SPAM"}, ErrPostNotFound},
		{"用户不存在", CreateReportRequest{ReportedID: "nope", Reason: "SPAM"}, ErrUserNotFound},
		{"举报自己", CreateReportRequest{ReportedID: reporter.ID, Reason: "SPAM"}, ErrSelfReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateReport(ctx, reporter.ID, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	report, err := svc.CreateReport(ctx, reporter.ID, CreateReportRequest{ReportedID: author.ID, Reason: "harassment", Details: "rude replies"})
	require.NoError(t, err)
	require.Equal(t, ReportPending, report.Status)
	require.Equal(t, ReasonHarassment, report.Reason)
	require.Nil(t, report.PostID)
}

func TestReportThresholdFlagsPost(t *testing.T) {
	svc, db := setupService(t)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	ctx := context.Background()

	post, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Garage sale on Saturday"})
	require.NoError(t, err)
	require.False(t, post.IsFlagged)

	for i := 0; i < 3; i++ {
		reporter := seedUser(t, db, fmt.Sprintf("neighbour%d", i), 100, moderation.AccountIndividual, false)
		_, err := svc.CreateReport(ctx, reporter.ID, CreateReportRequest{PostID: post.ID, Reason: "SPAM"})
		require.NoError(t, err)

		got, err := svc.GetPost(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, i == 2, got.InQueue(), "after %d reports", i+1)
	}
}

func TestReportThresholdRequeuesReviewedPost(t *testing.T) {
	svc, db := setupService(t)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	ctx := context.Background()

	post, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Free piano, collection only"})
	require.NoError(t, err)

	reviewed := fixedNow.Add(-time.Hour)
	require.NoError(t, db.Model(&Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
		"reviewed_at": reviewed,
		"reviewed_by": "admin",
	}).Error)

	checker := &recordingChecker{}
	svc.SetReportChecker(checker)
	for i := 0; i < 3; i++ {
		reporter := seedUser(t, db, fmt.Sprintf("r%d", i), 100, moderation.AccountIndividual, false)
		_, err := svc.CreateReport(ctx, reporter.ID, CreateReportRequest{PostID: post.ID, Reason: "SCAM"})
		require.NoError(t, err)
	}
	require.Len(t, checker.postIDs, 3)

	// 任务尚未执行，帖子仍不在队列中
	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.False(t, got.InQueue())

	flagged, err := svc.ApplyReportThreshold(ctx, post.ID)
	require.NoError(t, err)
	require.True(t, flagged)

	got, err = svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.True(t, got.InQueue())
	require.Nil(t, got.ReviewedAt)

	flagged, err = svc.ApplyReportThreshold(ctx, post.ID)
	require.NoError(t, err)
	require.False(t, flagged)
}

func TestCreateReportFallsBackWhenEnqueueFails(t *testing.T) {
	svc, db := setupService(t)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	ctx := context.Background()
	svc.SetReportChecker(&recordingChecker{err: errors.New("redis down")})

	post, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Book club moved to Thursday"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		reporter := seedUser(t, db, fmt.Sprintf("member%d", i), 100, moderation.AccountIndividual, false)
		_, err := svc.CreateReport(ctx, reporter.ID, CreateReportRequest{PostID: post.ID, Reason: "OTHER"})
		require.NoError(t, err)
	}

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.True(t, got.InQueue())
}

func TestRegisterUser(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	u, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "bakery", Email: "Shop@Example.org", AccountType: "company"})
	require.NoError(t, err)
	require.Equal(t, moderation.AccountCompany, u.AccountType)
	require.Equal(t, "shop@example.org", u.Email)

	_, err = svc.RegisterUser(ctx, RegisterUserRequest{Username: "bakery", Email: "other@example.org"})
	require.ErrorIs(t, err, ErrUserExists)

	_, err = svc.RegisterUser(ctx, RegisterUserRequest{Username: "x", Email: "x@example.org", AccountType: "ROBOT"})
	require.ErrorIs(t, err, ErrInvalidUser)

	admin, err := svc.IsAdmin(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, admin)
}

func TestPostsWithPendingReports(t *testing.T) {
	svc, db := setupService(t)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	reporter := seedUser(t, db, "reporter", 100, moderation.AccountIndividual, false)
	ctx := context.Background()

	first, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Street party on Sunday"})
	require.NoError(t, err)
	second, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Looking for a plumber"})
	require.NoError(t, err)

	for _, reason := range []string{"SPAM", "OTHER"} {
		_, err := svc.CreateReport(ctx, reporter.ID, CreateReportRequest{PostID: first.ID, Reason: reason})
		require.NoError(t, err)
	}
	_, err = svc.CreateReport(ctx, reporter.ID, CreateReportRequest{ReportedID: author.ID, Reason: "HARASSMENT"})
	require.NoError(t, err)

	ids, err := svc.PostsWithPendingReports(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{first.ID}, ids)
	require.NotContains(t, ids, second.ID)
}

func TestContentEvaluatedUntrimmed(t *testing.T) {
	svc, db := setupService(t)
	u := seedUser(t, db, "veteran", 400, moderation.AccountIndividual, false)
	ctx := context.Background()

	// 去掉首尾空白后长度不足 10，标点密度规则只会在原始文本上命中
	raw := "     ,.,.,"
	d, err := svc.CheckContent(ctx, u.ID, CheckContentRequest{Content: raw})
	require.NoError(t, err)
	require.Contains(t, d.FlagStrings(), string(moderation.FlagExcessivePunctuation))
	require.Equal(t, 10, d.RiskScore)

	post, _, err := svc.CreatePost(ctx, u.ID, CreatePostRequest{Content: "  Tomatoes are finally ripe \n"})
	require.NoError(t, err)

	var stored Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	require.Equal(t, "Tomatoes are finally ripe", stored.Content)
}

func TestReportThresholdYieldsToConcurrentApprove(t *testing.T) {
	svc, db := setupService(t)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	ctx := context.Background()

	post, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Garage sale this weekend"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		pid := post.ID
		require.NoError(t, db.Create(&Report{
			ReporterID: uuid.NewString(),
			PostID:     &pid,
			Reason:     ReasonSpam,
			Status:     ReportPending,
		}).Error)
	}

	// 阈值检查进行中，管理员的 approve 先提交：举报全部关闭，帖子已复核
	approvedAt := fixedNow.Add(-time.Minute)
	svc.now = func() time.Time {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&Report{}).Where("post_id = ? AND status = ?", post.ID, ReportPending).
				Updates(map[string]interface{}{"status": ReportResolved, "reviewed_by": "admin", "reviewed_at": approvedAt}).Error; err != nil {
				return err
			}
			return tx.Model(&Post{}).Where("id = ?", post.ID).
				Updates(map[string]interface{}{"is_flagged": false, "reviewed_at": approvedAt, "reviewed_by": "admin"}).Error
		}))
		return fixedNow
	}

	flagged, err := svc.ApplyReportThreshold(ctx, post.ID)
	require.NoError(t, err)
	require.False(t, flagged)

	var got Post
	require.NoError(t, db.First(&got, "id = ?", post.ID).Error)
	require.False(t, got.IsFlagged)
	require.NotNil(t, got.ReviewedAt)
	require.Equal(t, "admin", got.ReviewedBy)

	var pending int64
	require.NoError(t, db.Model(&Report{}).Where("post_id = ? AND status = ?", post.ID, ReportPending).Count(&pending).Error)
	require.Zero(t, pending)
}

func TestQueueDepthGaugeTracksSubmissions(t *testing.T) {
	svc, db := setupService(t)
	seller := seedUser(t, db, "seller", 0, moderation.AccountIndividual, false)
	author := seedUser(t, db, "author", 100, moderation.AccountIndividual, false)
	ctx := context.Background()
	metrics.SetQueueDepth(0)

	_, d, err := svc.CreatePost(ctx, seller.ID, CreatePostRequest{Content: "buy cheap followers now!!! call 555-1234"})
	require.NoError(t, err)
	require.True(t, d.NeedsReview)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ModerationQueueDepth))

	post, _, err := svc.CreatePost(ctx, author.ID, CreatePostRequest{Content: "Lost cat near the library"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		reporter := seedUser(t, db, fmt.Sprintf("depth%d", i), 100, moderation.AccountIndividual, false)
		_, err := svc.CreateReport(ctx, reporter.ID, CreateReportRequest{PostID: post.ID, Reason: "SPAM"})
		require.NoError(t, err)
	}
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.ModerationQueueDepth))
}
