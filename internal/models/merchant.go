package models

import (
	"time"

	"gorm.io/gorm"
)

// Merchant 商户表
type Merchant struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                             // 主键
	MerchantNo          string         `gorm:"uniqueIndex;not null" json:"merchant_no"`          // 商户编号
	Name                string         `gorm:"not null" json:"name"`                             // 商户名称
	IsOpen              bool           `gorm:"not null;default:true" json:"is_open"`             // 是否开放下单
	OrderTimeoutMinutes int            `gorm:"not null;default:30" json:"order_timeout_minutes"` // 下单超时时间（分钟）
	NotifyURL           string         `gorm:"type:varchar(500)" json:"notify_url,omitempty"`    // 商户回调地址
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                          // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间
}

// TableName 指定表名
func (Merchant) TableName() string {
	return "merchants"
}

// OrderTimeout 下单超时时长
func (m *Merchant) OrderTimeout() time.Duration {
	if m == nil || m.OrderTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(m.OrderTimeoutMinutes) * time.Minute
}
