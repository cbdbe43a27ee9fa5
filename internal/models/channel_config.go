package models

import (
	"time"
)

// ChannelConfig 商户交易渠道配置
// 同一商户在 (trade_type, channel_kind) 下最多只应有一条 ACTIVE 记录，写入时不做约束，解析时检查。
type ChannelConfig struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                              // 主键
	MerchantID  uint      `gorm:"not null;index:idx_channel_lookup,priority:1" json:"merchant_id"`                   // 商户ID
	TradeType   string    `gorm:"type:varchar(40);not null;index:idx_channel_lookup,priority:2" json:"trade_type"`   // 交易类型（wechat_native/wechat_h5/...）
	ChannelKind string    `gorm:"type:varchar(40);not null;index:idx_channel_lookup,priority:3" json:"channel_kind"` // 渠道类型（wechat）
	Status      string    `gorm:"type:varchar(20);not null;index:idx_channel_lookup,priority:4" json:"status"`       // 状态（ACTIVE/INACTIVE）
	Name        string    `gorm:"not null" json:"name"`                                                              // 渠道名称
	RuleName    string    `gorm:"type:varchar(40)" json:"rule_name"`                                                 // 描述规则名称
	ConfigJSON  JSON      `gorm:"type:json" json:"-"`                                                                // 渠道凭证配置
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                                           // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                                                           // 更新时间
}

// TableName 指定表名
func (ChannelConfig) TableName() string {
	return "channel_configs"
}

// ConfigString 读取渠道配置中的字符串值
func (c *ChannelConfig) ConfigString(key string) string {
	if c == nil || c.ConfigJSON == nil {
		return ""
	}
	value, ok := c.ConfigJSON[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
