// Package channel 按交易类型解析商户的启用渠道配置。
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/repository"
)

var (
	// ErrNoHandler 交易类型没有注册解析策略，属于配置错误
	ErrNoHandler = errors.New("no channel handler for trade type")
	// ErrMerchantRequired 商户为空
	ErrMerchantRequired = errors.New("merchant is required")
)

// Result 渠道解析结果，不支持时 Supported 为 false 且 Config 为空
type Result struct {
	Config    *models.ChannelConfig
	Supported bool
	Reason    string
}

// Strategy 单个交易类型的解析策略
type Strategy interface {
	TradeType() string
	ChannelKind() string
	Resolve(ctx context.Context, merchant *models.Merchant) (Result, error)
}

// Resolver 交易类型到解析策略的注册表
type Resolver struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewResolver 创建解析器
func NewResolver(strategies ...Strategy) *Resolver {
	r := &Resolver{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register 注册策略，同一交易类型后注册的覆盖先注册的
func (r *Resolver) Register(s Strategy) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[normalizeTradeType(s.TradeType())] = s
}

// TradeTypes 已注册的交易类型
func (r *Resolver) TradeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	return types
}

// Check 解析商户在指定交易类型下的启用配置
func (r *Resolver) Check(ctx context.Context, merchant *models.Merchant, tradeType string) (Result, error) {
	if merchant == nil {
		return Result{}, ErrMerchantRequired
	}
	key := normalizeTradeType(tradeType)
	r.mu.RLock()
	s, ok := r.strategies[key]
	r.mu.RUnlock()
	if !ok {
		logger.Errorw("channel_handler_missing", "trade_type", tradeType, "merchant_id", merchant.ID)
		return Result{}, fmt.Errorf("%w: %s", ErrNoHandler, tradeType)
	}
	return s.Resolve(ctx, merchant)
}

func normalizeTradeType(tradeType string) string {
	return strings.ToLower(strings.TrimSpace(tradeType))
}

// storeStrategy 通过渠道配置表查询启用记录的通用策略
type storeStrategy struct {
	tradeType   string
	channelKind string
	store       repository.ChannelConfigRepository
}

// NewStoreStrategy 创建基于配置表的策略
func NewStoreStrategy(tradeType, channelKind string, store repository.ChannelConfigRepository) Strategy {
	return &storeStrategy{tradeType: tradeType, channelKind: channelKind, store: store}
}

func (s *storeStrategy) TradeType() string   { return s.tradeType }
func (s *storeStrategy) ChannelKind() string { return s.channelKind }

// Resolve 零条记录返回不支持；多条启用记录取 id 最小的一条并告警
func (s *storeStrategy) Resolve(ctx context.Context, merchant *models.Merchant) (Result, error) {
	rows, err := s.store.FindActive(ctx, merchant.ID, s.tradeType, s.channelKind)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{
			Supported: false,
			Reason:    fmt.Sprintf("merchant %s does not support %s", merchant.MerchantNo, s.tradeType),
		}, nil
	}
	if len(rows) > 1 {
		logger.Warnw("channel_config_duplicate_active",
			"merchant_id", merchant.ID,
			"trade_type", s.tradeType,
			"channel_kind", s.channelKind,
			"picked_config_id", rows[0].ID,
			"other_config_id", rows[1].ID,
		)
	}
	cfg := rows[0]
	return Result{Config: &cfg, Supported: true}, nil
}
