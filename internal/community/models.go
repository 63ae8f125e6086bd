package community

import (
	"encoding/json"
	"time"

	"communityhub/internal/common"
	"communityhub/internal/moderation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 社区成员
type User struct {
	ID          string                 `json:"id" gorm:"type:varchar(36);primaryKey"`
	Username    string                 `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email       string                 `json:"email" gorm:"size:255;uniqueIndex;not null"`
	AccountType moderation.AccountType `json:"accountType" gorm:"size:20;not null;default:INDIVIDUAL"`
	IsAdmin     bool                   `json:"isAdmin" gorm:"not null;default:false"`
	common.TimestampModel
}

// TableName 表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成主键
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// AgeDays 账户年龄（整天），不足一天为 0
func (u *User) AgeDays(now time.Time) int {
	days := int(now.Sub(u.CreatedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Post 帖子
//
// 帖子被删除时直接物理删除，相关举报保留。
type Post struct {
	ID       string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	AuthorID string         `json:"authorId" gorm:"type:varchar(36);index;not null"`
	Content  string         `json:"content" gorm:"type:text;not null"`
	Images   datatypes.JSON `json:"images,omitempty"`

	IsFlagged       bool           `json:"isFlagged" gorm:"not null;default:false;index"`
	IsHidden        bool           `json:"isHidden" gorm:"not null;default:false"`
	FlaggedAt       *time.Time     `json:"flaggedAt,omitempty" gorm:"index"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
	ReviewedBy      string         `json:"reviewedBy,omitempty" gorm:"type:varchar(36)"`
	ModerationNotes string         `json:"moderationNotes,omitempty" gorm:"type:text"`
	RiskScore       int            `json:"riskScore" gorm:"not null;default:0"`
	ModerationFlags datatypes.JSON `json:"moderationFlags,omitempty"`

	common.TimestampModel
}

// TableName 表名
func (Post) TableName() string { return "posts" }

// BeforeCreate 生成主键
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// InQueue 是否在待复核队列中
func (p *Post) InQueue() bool {
	return p.IsFlagged && p.ReviewedAt == nil
}

// ImageURLs 解析图片列表
func (p *Post) ImageURLs() []string {
	return decodeStrings(p.Images)
}

// FlagList 解析审核类别
func (p *Post) FlagList() []string {
	return decodeStrings(p.ModerationFlags)
}

// ReportReason 举报原因
type ReportReason string

const (
	ReasonSpam           ReportReason = "SPAM"
	ReasonHarassment     ReportReason = "HARASSMENT"
	ReasonHateSpeech     ReportReason = "HATE_SPEECH"
	ReasonScam           ReportReason = "SCAM"
	ReasonInappropriate  ReportReason = "INAPPROPRIATE"
	ReasonMisinformation ReportReason = "MISINFORMATION"
	ReasonOther          ReportReason = "OTHER"
)

// Valid 是否为已知原因
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonHateSpeech, ReasonScam,
		ReasonInappropriate, ReasonMisinformation, ReasonOther:
		return true
	}
	return false
}

// ReportStatus 举报状态
//
// PENDING 只能流转到 APPROVED、DENIED 或 RESOLVED，之后不再变化。
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportApproved ReportStatus = "APPROVED"
	ReportDenied   ReportStatus = "DENIED"
	ReportResolved ReportStatus = "RESOLVED"
)

// Valid 是否为已知状态
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportApproved, ReportDenied, ReportResolved:
		return true
	}
	return false
}

// Report 用户举报
//
// PostID、ReportedID 不设外键，帖子删除后举报记录仍保留。
type Report struct {
	ID         string       `json:"id" gorm:"type:varchar(36);primaryKey"`
	ReporterID string       `json:"reporterId" gorm:"type:varchar(36);index;not null"`
	ReportedID *string      `json:"reportedId,omitempty" gorm:"type:varchar(36);index"`
	PostID     *string      `json:"postId,omitempty" gorm:"type:varchar(36);index"`
	Reason     ReportReason `json:"reason" gorm:"size:32;not null"`
	Details    string       `json:"details,omitempty" gorm:"type:text"`
	Status     ReportStatus `json:"status" gorm:"size:16;not null;default:PENDING;index"`
	ReviewedBy string       `json:"reviewedBy,omitempty" gorm:"type:varchar(36)"`
	ReviewedAt *time.Time   `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 表名
func (Report) TableName() string { return "reports" }

// BeforeCreate 生成主键
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Models 需要迁移的模型
func Models() []interface{} {
	return []interface{}{&User{}, &Post{}, &Report{}}
}

func encodeStrings(items []string) datatypes.JSON {
	if len(items) == 0 {
		return datatypes.JSON("[]")
	}
	data, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}
