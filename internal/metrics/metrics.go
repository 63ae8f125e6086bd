package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityhub_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "communityhub_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 审核指标
var (
	// ModerationDecisionsTotal 审核决策总数，outcome: allowed, review, blocked
	ModerationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityhub_moderation_decisions_total",
			Help: "审核决策总数",
		},
		[]string{"source", "outcome"},
	)

	// ModerationRiskScore 决策风险分分布
	ModerationRiskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "communityhub_moderation_risk_score",
			Help:    "审核风险分分布",
			Buckets: []float64{0, 10, 20, 30, 40, 60, 80, 100, 150},
		},
	)

	// ModerationFlagsTotal 各类别命中次数
	ModerationFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityhub_moderation_flags_total",
			Help: "审核类别命中次数",
		},
		[]string{"flag"},
	)

	// ReviewActionsTotal 管理员复核动作总数
	ReviewActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityhub_review_actions_total",
			Help: "复核动作总数",
		},
		[]string{"action"},
	)

	// ReportsResolvedTotal 随复核动作关闭的举报数
	ReportsResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "communityhub_reports_resolved_total",
			Help: "已关闭的举报总数",
		},
	)

	// ReportsCreatedTotal 新建举报数
	ReportsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityhub_reports_created_total",
			Help: "新建举报总数",
		},
		[]string{"reason"},
	)

	// ModerationQueueDepth 待复核帖子数量
	ModerationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "communityhub_moderation_queue_depth",
			Help: "待复核帖子数量",
		},
	)

	// ReportThresholdFlagsTotal 因举报数达标而进入队列的帖子数
	ReportThresholdFlagsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "communityhub_report_threshold_flags_total",
			Help: "因举报进入审核队列的帖子总数",
		},
	)
)

// RecordDecision 记录一次审核决策
func RecordDecision(source string, blocked, needsReview bool, riskScore int, flags []string) {
	outcome := "allowed"
	switch {
	case blocked:
		outcome = "blocked"
	case needsReview:
		outcome = "review"
	}
	ModerationDecisionsTotal.WithLabelValues(source, outcome).Inc()
	ModerationRiskScore.Observe(float64(riskScore))
	for _, f := range flags {
		ModerationFlagsTotal.WithLabelValues(f).Inc()
	}
}

// RecordReview 记录一次复核动作及其关闭的举报数
func RecordReview(action string, resolvedReports int64) {
	ReviewActionsTotal.WithLabelValues(action).Inc()
	if resolvedReports > 0 {
		ReportsResolvedTotal.Add(float64(resolvedReports))
	}
}

// SetQueueDepth 更新队列深度
func SetQueueDepth(depth int64) {
	ModerationQueueDepth.Set(float64(depth))
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
