package repository

import (
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

func isPostgres(dialect string) bool {
	switch dialect {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// supportsRowLock sqlite 不支持 SELECT ... FOR UPDATE
func supportsRowLock(db *gorm.DB) bool {
	return isPostgres(dbDialectName(db))
}

// likeOperator postgres 使用 ILIKE 做大小写无关匹配
func likeOperator(db *gorm.DB) string {
	if isPostgres(dbDialectName(db)) {
		return "ILIKE"
	}
	return "LIKE"
}
