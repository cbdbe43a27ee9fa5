package public

import (
	"strings"

	handlershared "github.com/paycore/internal/http/handlers/shared"
	"github.com/paycore/internal/http/response"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/repository"
	"github.com/paycore/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	BusinessKey string            `json:"business_key" binding:"required"`
	TradeType   string            `json:"trade_type" binding:"required"`
	Amount      string            `json:"amount" binding:"required"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	OpenID      string            `json:"open_id"`
	Attributes  map[string]string `json:"attributes"`
}

// CloseOrderRequest 关闭订单请求
type CloseOrderRequest struct {
	Reason string `json:"reason"`
}

// RefundOrderRequest 退款请求，金额为空时全额退款
type RefundOrderRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// CreateOrderResponse 创建订单响应
type CreateOrderResponse struct {
	Order  *models.Order `json:"order"`
	Reused bool          `json:"reused"`
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	amount, err := models.NewMoneyFromString(req.Amount)
	if err != nil {
		response.BadRequest(c, "invalid amount")
		return
	}
	result, err := h.OrderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		MerchantNo:  merchantNo,
		BusinessKey: req.BusinessKey,
		TradeType:   req.TradeType,
		Amount:      amount,
		Currency:    req.Currency,
		Description: req.Description,
		ClientIP:    c.ClientIP(),
		OpenID:      req.OpenID,
		Attributes:  req.Attributes,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, CreateOrderResponse{Order: result.Order, Reused: result.Reused})
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(c.Request.Context(), merchantNo, c.Param("order_no"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrderStatus 订单状态
func (h *Handler) GetOrderStatus(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	view, err := h.OrderService.GetOrderStatus(c.Request.Context(), merchantNo, c.Param("order_no"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, view)
}

// ListOrderFlows 订单状态流水
func (h *Handler) ListOrderFlows(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	flows, err := h.OrderService.ListOrderFlows(c.Request.Context(), merchantNo, c.Param("order_no"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, flows)
}

// ListOrders 商户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	orders, total, err := h.OrderService.ListOrders(c.Request.Context(), merchantNo, repository.OrderListFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    strings.ToLower(strings.TrimSpace(c.Query("status"))),
		TradeType: strings.ToLower(strings.TrimSpace(c.Query("trade_type"))),
		OrderNo:   strings.TrimSpace(c.Query("order_no")),
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// CloseOrder 关闭待支付订单
func (h *Handler) CloseOrder(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	var req CloseOrderRequest
	_ = c.ShouldBindJSON(&req)
	order, err := h.OrderService.CloseOrder(c.Request.Context(), merchantNo, c.Param("order_no"), req.Reason)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.SuccessWithMsg(c, "order closed", order)
}

// RefundOrder 申请退款
func (h *Handler) RefundOrder(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	var req RefundOrderRequest
	_ = c.ShouldBindJSON(&req)
	var amount models.Money
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := models.NewMoneyFromString(req.Amount)
		if err != nil {
			response.BadRequest(c, "invalid amount")
			return
		}
		amount = parsed
	}
	order, err := h.OrderService.RequestRefund(c.Request.Context(), service.RefundInput{
		MerchantNo: merchantNo,
		OrderNo:    c.Param("order_no"),
		Amount:     amount,
		Reason:     req.Reason,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// SyncOrder 主动查询渠道同步订单状态
func (h *Handler) SyncOrder(c *gin.Context) {
	merchantNo, ok := handlershared.GetMerchantNo(c)
	if !ok {
		return
	}
	result, err := h.OrderService.SyncOrder(c.Request.Context(), merchantNo, c.Param("order_no"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, gin.H{"order": result.Order, "changed": result.Changed})
}
