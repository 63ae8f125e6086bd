package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"communityhub/internal/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry 审计日志记录
type Entry struct {
	ID         string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	ActorID    string         `json:"actorId" gorm:"type:varchar(36);index"`
	Action     EventType      `json:"action" gorm:"size:64;not null;index"`
	Resource   string         `json:"resource" gorm:"size:32;not null"`
	ResourceID string         `json:"resourceId" gorm:"size:36;index"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (Entry) TableName() string {
	return "audit_logs"
}

// BeforeCreate 生成主键
func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Logger 将审计事件写入 audit_logs 表
type Logger struct {
	db *gorm.DB
}

// NewLogger 创建审计日志记录器
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// Record 写入一条审计记录
//
// tx 不为空时在调用方事务内写入，与业务变更一同提交或回滚。
func (l *Logger) Record(ctx context.Context, tx *gorm.DB, actorID string, action EventType, resource, resourceID string, details any) error {
	db := tx
	if db == nil {
		db = l.db.WithContext(ctx)
	}

	entry := &Entry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("序列化审计详情失败: %w", err)
		}
		entry.Details = datatypes.JSON(b)
	}

	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}

// Filter 审计日志查询条件
type Filter struct {
	From       *time.Time
	To         *time.Time
	ActorID    string
	Action     string
	ResourceID string
}

// Query 按条件查询审计日志，按时间倒序
func (l *Logger) Query(ctx context.Context, f Filter, page common.PaginationRequest) ([]Entry, int64, error) {
	db := l.db.WithContext(ctx).Model(&Entry{})
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", *f.To)
	}
	if f.ActorID != "" {
		db = db.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		db = db.Where("action = ?", strings.TrimSpace(f.Action))
	}
	if f.ResourceID != "" {
		db = db.Where("resource_id = ?", f.ResourceID)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计审计日志失败: %w", err)
	}

	entries := make([]Entry, 0)
	if err := db.Scopes(common.Paginate(page)).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return entries, total, nil
}
