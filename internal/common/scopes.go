package common

import "gorm.io/gorm"

// Paginate 应用分页条件
// 使用方法：db.Scopes(common.Paginate(req)).Find(&posts)
func Paginate(req PaginationRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.GetOffset()).Limit(req.GetPageSize())
	}
}

// ByStatus 按状态过滤，空状态不过滤
func ByStatus(status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}
