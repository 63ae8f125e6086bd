package tasks

// 任务类型
const (
	TypeReportThreshold   = "moderation:report_threshold"
	TypeRefreshQueueDepth = "moderation:refresh_queue_depth"
)

// 队列名称
const (
	QueueModeration = "moderation"
	QueueDefault    = "default"
)

// ReportThresholdPayload 举报阈值检查任务载荷
type ReportThresholdPayload struct {
	PostID string `json:"post_id"`
}
