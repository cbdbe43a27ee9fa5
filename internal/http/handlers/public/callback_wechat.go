package public

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paycore/internal/channel"
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/service"

	"github.com/gin-gonic/gin"
)

const maxCallbackBodyBytes = 1 << 20

// WechatCallback 微信支付/退款回调
// 状态冲突或订单已处理都应答成功，避免渠道无限重试。
func (h *Handler) WechatCallback(c *gin.Context) {
	log := requestLog(c)
	channelID, err := strconv.ParseUint(strings.TrimSpace(c.Param("channel_id")), 10, 64)
	if err != nil || channelID == 0 {
		log.Warnw("wechat_callback_channel_invalid", "channel_id", c.Param("channel_id"))
		respondWechatCallback(c, false)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBodyBytes))
	if err != nil {
		log.Warnw("wechat_callback_body_read_failed", "error", err)
		respondWechatCallback(c, false)
		return
	}
	log.Infow("wechat_callback_received",
		"channel_id", channelID,
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"wechatpay_serial", strings.TrimSpace(c.GetHeader("Wechatpay-Serial")),
	)

	ctx := c.Request.Context()
	cfg, err := h.ChannelConfigRepo.GetByID(ctx, uint(channelID))
	if err != nil {
		log.Errorw("wechat_callback_channel_load_failed", "channel_id", channelID, "error", err)
		respondWechatCallback(c, false)
		return
	}
	if cfg == nil || cfg.ChannelKind != constants.ChannelKindWechat {
		log.Warnw("wechat_callback_channel_not_found", "channel_id", channelID)
		respondWechatCallback(c, false)
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	result, err := h.decodeWechat(ctx, cfg, headers, body)
	if err != nil {
		log.Warnw("wechat_callback_verify_failed", "channel_id", channelID, "error", err)
		respondWechatCallback(c, false)
		return
	}

	outcome, err := h.OrderService.HandleCallback(ctx, service.OrderCallback{
		TradeSource:      channel.TradeSourceOf(cfg.ChannelKind),
		OrderNo:          result.OrderNo,
		TargetStatus:     result.TargetStatus,
		ProviderTradeNo:  result.TransactionID,
		ProviderRefundNo: result.RefundID,
		Amount:           result.Amount,
		HasAmount:        result.HasAmount,
		PaidAt:           result.PaidAt,
		Remark:           result.EventType + " " + result.ProviderState,
		Payload:          result.Raw,
	})
	switch {
	case err == nil:
		log.Infow("wechat_callback_processed",
			"order_no", outcome.Order.OrderNo,
			"status", outcome.Order.Status,
			"changed", outcome.Changed,
		)
		respondWechatCallback(c, true)
	case errors.Is(err, service.ErrTransitionConflict), errors.Is(err, service.ErrOrderNotFound):
		log.Warnw("wechat_callback_ignored", "order_no", result.OrderNo, "target", result.TargetStatus, "error", err)
		respondWechatCallback(c, true)
	default:
		log.Errorw("wechat_callback_handle_failed", "order_no", result.OrderNo, "error", err)
		respondWechatCallback(c, false)
	}
}

func respondWechatCallback(c *gin.Context, success bool) {
	if success {
		c.JSON(http.StatusOK, gin.H{
			"code":    "SUCCESS",
			"message": "成功",
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "FAIL",
		"message": "失败",
	})
}
