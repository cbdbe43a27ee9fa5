package repository

import (
	"context"

	"github.com/paycore/internal/models"

	"gorm.io/gorm"
)

// OrderFlowRepository 订单流水数据访问接口
type OrderFlowRepository interface {
	Create(ctx context.Context, flow *models.OrderFlow) error
	CreateBatch(ctx context.Context, flows []models.OrderFlow) error
	ListByOrderID(ctx context.Context, orderID uint) ([]models.OrderFlow, error)
	WithTx(tx *gorm.DB) *GormOrderFlowRepository
}

// GormOrderFlowRepository GORM 实现
type GormOrderFlowRepository struct {
	db *gorm.DB
}

// NewOrderFlowRepository 创建订单流水仓库
func NewOrderFlowRepository(db *gorm.DB) *GormOrderFlowRepository {
	return &GormOrderFlowRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderFlowRepository) WithTx(tx *gorm.DB) *GormOrderFlowRepository {
	if tx == nil {
		return r
	}
	return &GormOrderFlowRepository{db: tx}
}

// Create 写入流水
func (r *GormOrderFlowRepository) Create(ctx context.Context, flow *models.OrderFlow) error {
	return r.db.WithContext(ctx).Create(flow).Error
}

// CreateBatch 批量写入流水
func (r *GormOrderFlowRepository) CreateBatch(ctx context.Context, flows []models.OrderFlow) error {
	if len(flows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(flows, 100).Error
}

// ListByOrderID 按时间顺序获取订单流水
func (r *GormOrderFlowRepository) ListByOrderID(ctx context.Context, orderID uint) ([]models.OrderFlow, error) {
	var flows []models.OrderFlow
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&flows).Error; err != nil {
		return nil, err
	}
	return flows, nil
}
