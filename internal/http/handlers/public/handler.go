package public

import (
	"context"

	"github.com/paycore/internal/models"
	"github.com/paycore/internal/payment/wechatpay"
	"github.com/paycore/internal/provider"
)

// WebhookDecoder 校验并解析渠道回调
type WebhookDecoder func(ctx context.Context, channel *models.ChannelConfig, headers map[string]string, body []byte) (*wechatpay.WebhookResult, error)

// Handler 商户接口与渠道回调处理器
type Handler struct {
	*provider.Container
	decodeWechat WebhookDecoder
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	h := &Handler{Container: c}
	h.decodeWechat = h.verifyWechatWebhook
	return h
}

// SetWechatDecoder 替换微信回调解析
func (h *Handler) SetWechatDecoder(decoder WebhookDecoder) {
	if decoder != nil {
		h.decodeWechat = decoder
	}
}

func (h *Handler) verifyWechatWebhook(ctx context.Context, channel *models.ChannelConfig, headers map[string]string, body []byte) (*wechatpay.WebhookResult, error) {
	cfg, err := h.Wechat.LoadConfig(channel)
	if err != nil {
		return nil, err
	}
	return wechatpay.VerifyAndDecodeWebhook(ctx, cfg, headers, body)
}
