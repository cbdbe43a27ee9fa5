package repository

import (
	"context"
	"errors"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"

	"gorm.io/gorm"
)

// ChannelConfigRepository 渠道配置数据访问接口
type ChannelConfigRepository interface {
	Create(ctx context.Context, cfg *models.ChannelConfig) error
	GetByID(ctx context.Context, id uint) (*models.ChannelConfig, error)
	FindActive(ctx context.Context, merchantID uint, tradeType, channelKind string) ([]models.ChannelConfig, error)
}

// GormChannelConfigRepository GORM 实现
type GormChannelConfigRepository struct {
	db *gorm.DB
}

// NewChannelConfigRepository 创建渠道配置仓库
func NewChannelConfigRepository(db *gorm.DB) *GormChannelConfigRepository {
	return &GormChannelConfigRepository{db: db}
}

// Create 创建渠道配置
func (r *GormChannelConfigRepository) Create(ctx context.Context, cfg *models.ChannelConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// GetByID 根据 ID 获取渠道配置
func (r *GormChannelConfigRepository) GetByID(ctx context.Context, id uint) (*models.ChannelConfig, error) {
	var cfg models.ChannelConfig
	if err := r.db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// FindActive 查询商户在指定交易类型与渠道下的启用配置
// 按 id 升序最多返回两条，调用方据此识别重复启用的配置。
func (r *GormChannelConfigRepository) FindActive(ctx context.Context, merchantID uint, tradeType, channelKind string) ([]models.ChannelConfig, error) {
	var rows []models.ChannelConfig
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND trade_type = ? AND channel_kind = ? AND status = ?",
			merchantID, tradeType, channelKind, constants.ChannelConfigStatusActive).
		Order("id ASC").
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
