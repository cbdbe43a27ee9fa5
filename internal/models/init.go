package models

import (
	"errors"
	"strings"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/logger"

	"gorm.io/gorm"
)

// DemoChannel 演示渠道配置
type DemoChannel struct {
	TradeType string
	Name      string
	RuleName  string
	Config    JSON
}

// SeedDemoMerchant 初始化演示商户及其渠道配置，已存在时直接返回
func SeedDemoMerchant(db *gorm.DB, merchantNo, name string, timeoutMinutes int, channels []DemoChannel) (*Merchant, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	merchantNo = strings.TrimSpace(merchantNo)
	if merchantNo == "" {
		return nil, errors.New("merchant no is required")
	}

	var merchant Merchant
	err := db.Where("merchant_no = ?", merchantNo).First(&merchant).Error
	if err == nil {
		logger.Infow("seed_merchant_exists", "merchant_no", merchantNo, "merchant_id", merchant.ID)
		return &merchant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	merchant = Merchant{
		MerchantNo:          merchantNo,
		Name:                name,
		IsOpen:              true,
		OrderTimeoutMinutes: timeoutMinutes,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&merchant).Error; err != nil {
			return err
		}
		for _, ch := range channels {
			row := ChannelConfig{
				MerchantID:  merchant.ID,
				TradeType:   ch.TradeType,
				ChannelKind: constants.ChannelKindWechat,
				Status:      constants.ChannelConfigStatusActive,
				Name:        ch.Name,
				RuleName:    ch.RuleName,
				ConfigJSON:  ch.Config,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("seed_merchant_created", "merchant_no", merchantNo, "merchant_id", merchant.ID, "channels", len(channels))
	return &merchant, nil
}
