package repository

import "gorm.io/gorm"

const maxListPageSize = 200

// paginate 分页 scope，pageSize<=0 表示不分页
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if pageSize > maxListPageSize {
			pageSize = maxListPageSize
		}
		if page < 1 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
