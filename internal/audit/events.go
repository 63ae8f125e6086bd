package audit

// EventType 审计事件类型
type EventType string

// 审核相关事件
const (
	EventReviewApprove EventType = "moderation.review.approve" // 复核通过
	EventReviewHide    EventType = "moderation.review.hide"    // 复核隐藏
	EventReviewDelete  EventType = "moderation.review.delete"  // 复核删除
	EventReportResolve EventType = "moderation.report.resolve" // 单条举报处理
)

// 用户管理事件
const (
	EventUserCreate EventType = "user.create" // 管理员创建用户
)

// 资源类型
const (
	ResourcePost   = "post"
	ResourceReport = "report"
	ResourceUser   = "user"
)

// ReviewEvent 复核动作对应的事件类型
func ReviewEvent(action string) EventType {
	return EventType("moderation.review." + action)
}
