package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
)

const defaultWebhookTimeout = 10 * time.Second

// ErrWebhookRejected 商户回调地址返回非 2xx
var ErrWebhookRejected = errors.New("merchant webhook rejected")

// MerchantLookup 按商户号查询商户
type MerchantLookup interface {
	GetByMerchantNo(ctx context.Context, merchantNo string) (*models.Merchant, error)
}

// MerchantWebhook 把订单事件 POST 到商户配置的 notify_url
type MerchantWebhook struct {
	merchants MerchantLookup
	client    *http.Client
}

// NewMerchantWebhook 创建商户回调监听器，client 为空时使用 10 秒超时的默认客户端
func NewMerchantWebhook(merchants MerchantLookup, client *http.Client) *MerchantWebhook {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &MerchantWebhook{merchants: merchants, client: client}
}

// OnEvent 实现 Listener；未配置回调地址的商户直接跳过
func (w *MerchantWebhook) OnEvent(ctx context.Context, event Event) error {
	if w == nil || w.merchants == nil {
		return nil
	}
	merchant, err := w.merchants.GetByMerchantNo(ctx, event.MerchantNo)
	if err != nil {
		return fmt.Errorf("load merchant %s: %w", event.MerchantNo, err)
	}
	if merchant == nil {
		return nil
	}
	target := strings.TrimSpace(merchant.NotifyURL)
	if target == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Order-No", event.OrderNo)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	// 读完响应体以复用连接
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode)
	}
	logger.Debugw("notify_merchant_webhook_sent",
		"merchant_no", event.MerchantNo,
		"order_no", event.OrderNo,
		"status", event.Status,
	)
	return nil
}
