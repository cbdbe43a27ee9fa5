package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paycore/internal/config"
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/service"
)

func main() {
	var (
		merchantNo     string
		merchantName   string
		timeoutMinutes int
		tradeTypes     string
	)
	flag.StringVar(&merchantNo, "merchant", "M1001", "商户号")
	flag.StringVar(&merchantName, "name", "Demo Merchant", "商户名称")
	flag.IntVar(&timeoutMinutes, "timeout", 30, "订单超时分钟数")
	flag.StringVar(&tradeTypes, "trade-types", strings.Join([]string{
		constants.TradeTypeWechatNative,
		constants.TradeTypeWechatH5,
		constants.TradeTypeWechatJSAPI,
	}, ","), "启用的交易类型，逗号分隔")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, false, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(nil); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 渠道密钥等参数需在渠道配置中补齐后才能真实下单
	var channels []models.DemoChannel
	for _, raw := range strings.Split(tradeTypes, ",") {
		tradeType := strings.ToLower(strings.TrimSpace(raw))
		if tradeType == "" {
			continue
		}
		ch := models.DemoChannel{
			TradeType: tradeType,
			Name:      "wechat " + tradeType,
			RuleName:  constants.RuleNameDefault,
			Config:    models.JSON{},
		}
		if tradeType == constants.TradeTypeWechatPaymentPoints {
			ch.RuleName = constants.RuleNamePaymentPoints
		}
		channels = append(channels, ch)
	}

	merchant, err := models.SeedDemoMerchant(models.DB, merchantNo, merchantName, timeoutMinutes, channels)
	if err != nil {
		stdLog.Fatalf("Failed to seed merchant: %v", err)
	}
	stdLog.Printf("Merchant ready: %s (id=%d)", merchant.MerchantNo, merchant.ID)

	if strings.TrimSpace(cfg.JWT.SecretKey) == "" {
		stdLog.Printf("jwt.secret is empty, skip token generation")
		return
	}
	token, expiresAt, err := service.GenerateMerchantToken(cfg.JWT.SecretKey, merchant.MerchantNo, cfg.JWT.ExpireHours, time.Now())
	if err != nil {
		stdLog.Fatalf("Failed to generate merchant token: %v", err)
	}
	fmt.Fprintf(os.Stdout, "merchant_no=%s\ntoken=%s\nexpires_at=%s\n", merchant.MerchantNo, token, expiresAt.Format(time.RFC3339))
}
