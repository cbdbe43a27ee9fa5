package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/paycore/internal/models"
)

// ErrGatewayNotFound 渠道未注册网关
var ErrGatewayNotFound = errors.New("payment gateway not found")

// PrepayRequest 预下单请求
type PrepayRequest struct {
	OrderNo     string
	TradeType   string
	Amount      models.Money
	Currency    string
	Description string
	ClientIP    string
	OpenID      string
	NotifyURL   string
	ExpiresAt   *time.Time
	Config      *models.ChannelConfig
}

// PrepayResult 预下单结果
type PrepayResult struct {
	PrepayID string
	PayURL   string
	Raw      map[string]interface{}
}

// RefundRequest 退款请求
type RefundRequest struct {
	OrderNo         string
	ProviderTradeNo string
	RefundNo        string
	Reason          string
	Amount          models.Money
	Total           models.Money
	Currency        string
	NotifyURL       string
	Config          *models.ChannelConfig
}

// RefundResult 退款受理结果，Status 为订单目标状态，受理中时为 refund_requested
type RefundResult struct {
	ProviderRefundNo string
	Status           string
	Raw              map[string]interface{}
}

// QueryRequest 查询请求
type QueryRequest struct {
	OrderNo string
	Config  *models.ChannelConfig
}

// QueryResult 查询结果，Status 为空表示渠道侧尚无终态
type QueryResult struct {
	OrderNo         string
	ProviderTradeNo string
	Status          string
	Amount          models.Money
	HasAmount       bool
	PaidAt          *time.Time
	Raw             map[string]interface{}
}

// Gateway 支付渠道网关
type Gateway interface {
	Kind() string
	Prepay(ctx context.Context, req PrepayRequest) (*PrepayResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
}

// Registry 按渠道类型索引网关
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry 创建网关注册表
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, gw := range gateways {
		r.Register(gw)
	}
	return r
}

// Register 注册网关，同类型后注册覆盖先注册
func (r *Registry) Register(gw Gateway) {
	if r == nil || gw == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[normalizeKind(gw.Kind())] = gw
}

// Get 获取网关
func (r *Registry) Get(kind string) (Gateway, error) {
	if r == nil {
		return nil, ErrGatewayNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[normalizeKind(kind)]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	return gw, nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
