package review

import (
	"communityhub/internal/community"
	"communityhub/internal/moderation"
)

// Action 管理员复核动作
type Action string

const (
	ActionApprove Action = "approve"
	ActionHide    Action = "hide"
	ActionDelete  Action = "delete"
)

// ParseAction 解析复核动作，只接受小写的 approve、hide、delete
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionApprove, ActionHide, ActionDelete:
		return a, true
	}
	return "", false
}

// ReviewRequest 复核请求
type ReviewRequest struct {
	PostID string `json:"postId"`
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

// ReviewResult 复核结果
type ReviewResult struct {
	PostID          string          `json:"postId"`
	Action          Action          `json:"action"`
	ResolvedReports int64           `json:"resolvedReports"`
	Post            *community.Post `json:"post,omitempty"` // delete 后为空
}

// AuthorSummary 队列中展示的作者信息
type AuthorSummary struct {
	ID          string                 `json:"id"`
	Username    string                 `json:"username"`
	AccountType moderation.AccountType `json:"accountType"`
}

// QueueItem 待复核条目：帖子及其待处理举报
type QueueItem struct {
	Post    community.Post     `json:"post"`
	Author  *AuthorSummary     `json:"author,omitempty"`
	Reports []community.Report `json:"reports"`
}

// Stats 审核概况
type Stats struct {
	QueueDepth      int64            `json:"queueDepth"`
	HiddenPosts     int64            `json:"hiddenPosts"`
	PendingReports  int64            `json:"pendingReports"`
	ReportsByStatus map[string]int64 `json:"reportsByStatus"`
}
