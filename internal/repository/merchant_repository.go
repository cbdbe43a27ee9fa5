package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/paycore/internal/models"

	"gorm.io/gorm"
)

// MerchantRepository 商户数据访问接口
type MerchantRepository interface {
	Create(ctx context.Context, merchant *models.Merchant) error
	GetByID(ctx context.Context, id uint) (*models.Merchant, error)
	GetByMerchantNo(ctx context.Context, merchantNo string) (*models.Merchant, error)
	ListEffective(ctx context.Context) ([]models.Merchant, error)
}

// GormMerchantRepository GORM 实现
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository 创建商户仓库
func NewMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// Create 创建商户
func (r *GormMerchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

// GetByID 根据 ID 获取商户
func (r *GormMerchantRepository) GetByID(ctx context.Context, id uint) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByMerchantNo 根据商户编号获取商户
func (r *GormMerchantRepository) GetByMerchantNo(ctx context.Context, merchantNo string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).Where("merchant_no = ?", strings.TrimSpace(merchantNo)).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// ListEffective 获取全部有效商户（开放下单且配置了超时时间）
func (r *GormMerchantRepository) ListEffective(ctx context.Context) ([]models.Merchant, error) {
	var merchants []models.Merchant
	err := r.db.WithContext(ctx).
		Where("is_open = ? AND order_timeout_minutes > 0", true).
		Order("id ASC").
		Find(&merchants).Error
	if err != nil {
		return nil, err
	}
	return merchants, nil
}
