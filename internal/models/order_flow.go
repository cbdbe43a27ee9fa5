package models

import "time"

// OrderFlow 订单状态流水，每次状态变更与订单更新在同一事务写入
type OrderFlow struct {
	ID         uint      `gorm:"primarykey" json:"id"`                       // 主键
	FlowNo     string    `gorm:"uniqueIndex;not null" json:"flow_no"`        // 流水编号
	OrderID    uint      `gorm:"index;not null" json:"order_id"`             // 订单ID
	OrderNo    string    `gorm:"type:varchar(64);not null" json:"order_no"`  // 订单编号
	FromStatus string    `gorm:"type:varchar(32)" json:"from_status"`        // 变更前状态
	ToStatus   string    `gorm:"type:varchar(32);not null" json:"to_status"` // 变更后状态
	Source     string    `gorm:"type:varchar(32);not null" json:"source"`    // 触发来源
	Remark     string    `gorm:"type:varchar(255)" json:"remark,omitempty"`  // 备注
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                    // 创建时间
}

// TableName 指定表名
func (OrderFlow) TableName() string {
	return "pay_order_flows"
}
