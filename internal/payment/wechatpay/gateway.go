package wechatpay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/payment"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
)

// Gateway 微信支付网关
type Gateway struct {
	baseURL    string
	httpClient *http.Client
}

// NewGateway 创建微信支付网关，baseURL 为空时使用渠道配置或官方地址
func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	gw := &Gateway{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
	if timeout > 0 {
		gw.httpClient = &http.Client{Timeout: timeout}
	}
	return gw
}

// Kind 渠道类型
func (g *Gateway) Kind() string {
	return constants.ChannelKindWechat
}

// LoadConfig 从渠道配置解析微信配置，渠道未指定 base_url 时使用网关地址
func (g *Gateway) LoadConfig(channel *models.ChannelConfig) (*Config, error) {
	if channel == nil {
		return nil, fmt.Errorf("%w: channel config is nil", ErrConfigInvalid)
	}
	cfg, err := ParseConfig(map[string]interface{}(channel.ConfigJSON))
	if err != nil {
		return nil, err
	}
	if channel.ConfigString("base_url") == "" && g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	return cfg, nil
}

// Prepay 按交易类型调用对应下单接口
func (g *Gateway) Prepay(ctx context.Context, req payment.PrepayRequest) (*payment.PrepayResult, error) {
	cfg, err := g.LoadConfig(req.Config)
	if err != nil {
		return nil, err
	}
	tradeType := normalizeTradeType(req.TradeType)
	if err := ValidateConfig(cfg, tradeType); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrderNo) == "" {
		return nil, fmt.Errorf("%w: order no is required", ErrConfigInvalid)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}

	client, err := createAPIClient(ctx, cfg, g.httpClient)
	if err != nil {
		return nil, err
	}
	notifyURL := pickFirstNonEmpty(req.NotifyURL, cfg.NotifyURL)
	description := buildDescription(req.Description, req.OrderNo)

	if tradeType == constants.TradeTypeWechatPaymentPoints {
		return g.prepayPayScore(ctx, client, cfg, req, notifyURL, description)
	}

	payload := map[string]interface{}{
		"appid":        cfg.AppID,
		"mchid":        cfg.MerchantID,
		"description":  description,
		"out_trade_no": req.OrderNo,
		"notify_url":   notifyURL,
		"amount": map[string]interface{}{
			"total":    req.Amount.Fen(),
			"currency": pickFirstNonEmpty(req.Currency, constants.CurrencyCNY),
		},
	}
	if req.ExpiresAt != nil {
		payload["time_expire"] = req.ExpiresAt.Format(time.RFC3339)
	}
	clientIP := normalizeClientIP(req.ClientIP)

	endpoint := ""
	switch tradeType {
	case constants.TradeTypeWechatH5:
		endpoint = endpointH5
		h5Info := map[string]interface{}{
			"type": cfg.H5Type,
		}
		if cfg.H5WapName != "" {
			h5Info["app_name"] = cfg.H5WapName
		}
		if cfg.H5WapURL != "" {
			h5Info["app_url"] = cfg.H5WapURL
		}
		payload["scene_info"] = map[string]interface{}{
			"payer_client_ip": clientIP,
			"h5_info":         h5Info,
		}
	case constants.TradeTypeWechatNative:
		endpoint = endpointNative
		payload["scene_info"] = map[string]interface{}{
			"payer_client_ip": clientIP,
		}
	case constants.TradeTypeWechatJSAPI:
		openID := strings.TrimSpace(req.OpenID)
		if openID == "" {
			return nil, fmt.Errorf("%w: openid is required for jsapi", ErrConfigInvalid)
		}
		endpoint = endpointJSAPI
		payload["payer"] = map[string]interface{}{"openid": openID}
	}

	var reply prepayReply
	raw, err := callJSON(ctx, client, http.MethodPost, cfg.BaseURL+endpoint, payload, &reply)
	if err != nil {
		return nil, err
	}
	result := &payment.PrepayResult{Raw: raw, PrepayID: strings.TrimSpace(reply.PrepayID)}
	switch tradeType {
	case constants.TradeTypeWechatH5:
		if strings.TrimSpace(reply.H5URL) == "" {
			return nil, fmt.Errorf("%w: missing h5_url", ErrResponseInvalid)
		}
		result.PayURL = appendRedirectURL(reply.H5URL, cfg.H5RedirectURL)
	case constants.TradeTypeWechatNative:
		if result.PayURL = strings.TrimSpace(reply.CodeURL); result.PayURL == "" {
			return nil, fmt.Errorf("%w: missing code_url", ErrResponseInvalid)
		}
	case constants.TradeTypeWechatJSAPI:
		if result.PrepayID == "" {
			return nil, fmt.Errorf("%w: missing prepay_id", ErrResponseInvalid)
		}
	}
	return result, nil
}

func (g *Gateway) prepayPayScore(ctx context.Context, client *core.Client, cfg *Config, req payment.PrepayRequest, notifyURL, description string) (*payment.PrepayResult, error) {
	riskFund := cfg.RiskFundAmountFen
	if riskFund <= 0 {
		riskFund = req.Amount.Fen()
	}
	payload := map[string]interface{}{
		"out_order_no":         req.OrderNo,
		"appid":                cfg.AppID,
		"service_id":           cfg.ServiceID,
		"service_introduction": description,
		"time_range": map[string]interface{}{
			"start_time": "OnAccept",
		},
		"risk_fund": map[string]interface{}{
			"name":   cfg.RiskFundName,
			"amount": riskFund,
		},
		"notify_url":        notifyURL,
		"need_user_confirm": true,
	}
	if openID := strings.TrimSpace(req.OpenID); openID != "" {
		payload["openid"] = openID
	}
	var reply payScoreReply
	raw, err := callJSON(ctx, client, http.MethodPost, cfg.BaseURL+endpointPayScore, payload, &reply)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.OrderID) == "" {
		return nil, fmt.Errorf("%w: missing order_id", ErrResponseInvalid)
	}
	return &payment.PrepayResult{
		PrepayID: strings.TrimSpace(reply.OrderID),
		PayURL:   strings.TrimSpace(reply.Package),
		Raw:      raw,
	}, nil
}

// Refund 申请退款
func (g *Gateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	cfg, err := g.LoadConfig(req.Config)
	if err != nil {
		return nil, err
	}
	if err := validateBaseConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.RefundNo) == "" {
		return nil, fmt.Errorf("%w: refund no is required", ErrConfigInvalid)
	}
	if !req.Amount.IsPositive() || req.Amount.GreaterThan(req.Total.Decimal) {
		return nil, fmt.Errorf("%w: refund amount is invalid", ErrConfigInvalid)
	}
	client, err := createAPIClient(ctx, cfg, g.httpClient)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"out_refund_no": req.RefundNo,
		"notify_url":    pickFirstNonEmpty(req.NotifyURL, cfg.RefundNotifyURL, cfg.NotifyURL),
		"amount": map[string]interface{}{
			"refund":   req.Amount.Fen(),
			"total":    req.Total.Fen(),
			"currency": pickFirstNonEmpty(req.Currency, constants.CurrencyCNY),
		},
	}
	if req.ProviderTradeNo != "" {
		payload["transaction_id"] = req.ProviderTradeNo
	} else {
		payload["out_trade_no"] = req.OrderNo
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		payload["reason"] = reason
	}

	var reply refundResource
	raw, err := callJSON(ctx, client, http.MethodPost, cfg.BaseURL+endpointRefund, payload, &reply)
	if err != nil {
		return nil, err
	}
	status, ok := ToRefundStatus(reply.state())
	if !ok {
		return nil, fmt.Errorf("%w: unsupported refund status %s", ErrResponseInvalid, reply.state())
	}
	return &payment.RefundResult{
		ProviderRefundNo: strings.TrimSpace(reply.RefundID),
		Status:           status,
		Raw:              raw,
	}, nil
}

// Query 根据商户订单号查询交易状态
func (g *Gateway) Query(ctx context.Context, req payment.QueryRequest) (*payment.QueryResult, error) {
	cfg, err := g.LoadConfig(req.Config)
	if err != nil {
		return nil, err
	}
	if err := validateBaseConfig(cfg); err != nil {
		return nil, err
	}
	orderNo := strings.TrimSpace(req.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order no is required", ErrConfigInvalid)
	}
	client, err := createAPIClient(ctx, cfg, g.httpClient)
	if err != nil {
		return nil, err
	}
	requestURL := cfg.BaseURL +
		"/v3/pay/transactions/out-trade-no/" + url.PathEscape(orderNo) +
		"?mchid=" + url.QueryEscape(cfg.MerchantID)
	var reply transactionResource
	raw, err := callJSON(ctx, client, http.MethodGet, requestURL, nil, &reply)
	if err != nil {
		return nil, err
	}
	status, ok := ToOrderStatus(reply.TradeState)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported trade_state %s", ErrResponseInvalid, reply.TradeState)
	}
	result := &payment.QueryResult{
		OrderNo:         pickFirstNonEmpty(reply.OutTradeNo, orderNo),
		ProviderTradeNo: strings.TrimSpace(reply.TransactionID),
		Status:          status,
		PaidAt:          parseTransactionTime(reply.SuccessTime),
		Raw:             raw,
	}
	result.Amount, result.HasAmount = reply.Amount.total()
	return result, nil
}
