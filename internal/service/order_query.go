package service

import (
	"context"
	"time"

	"github.com/paycore/internal/cache"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/repository"
)

// OrderStatusView 订单状态查询结果
type OrderStatusView struct {
	OrderNo   string    `json:"order_no"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Cached    bool      `json:"-"`
}

// GetOrder 获取商户订单详情
func (s *OrderService) GetOrder(ctx context.Context, merchantNo, orderNo string) (*models.Order, error) {
	return s.loadOrder(ctx, merchantNo, orderNo)
}

// GetOrderStatus 查询订单状态，优先读缓存
func (s *OrderService) GetOrderStatus(ctx context.Context, merchantNo, orderNo string) (*OrderStatusView, error) {
	if cache.Enabled() {
		snap, ok, err := cache.GetOrderStatus(ctx, orderNo)
		if err != nil {
			logger.Warnw("order_status_cache_get_failed", "order_no", orderNo, "error", err)
		}
		if ok && snap != nil && (merchantNo == "" || snap.MerchantNo == merchantNo) {
			return &OrderStatusView{OrderNo: snap.OrderNo, Status: snap.Status, UpdatedAt: snap.UpdatedAt, Cached: true}, nil
		}
	}
	// 同一订单并发回源只读库一次；回源不随首个调用方取消，各调用方各自等待
	ch := s.statusLoads.DoChan(merchantNo+"|"+orderNo, func() (interface{}, error) {
		loadCtx, cancel := detachedContext(ctx)
		defer cancel()
		order, err := s.loadOrder(loadCtx, merchantNo, orderNo)
		if err != nil {
			return nil, err
		}
		s.cacheStatus(loadCtx, order)
		return &OrderStatusView{OrderNo: order.OrderNo, Status: order.Status, UpdatedAt: order.UpdatedAt}, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		view := *res.Val.(*OrderStatusView)
		return &view, nil
	}
}

// ListOrderFlows 订单状态流水
func (s *OrderService) ListOrderFlows(ctx context.Context, merchantNo, orderNo string) ([]models.OrderFlow, error) {
	order, err := s.loadOrder(ctx, merchantNo, orderNo)
	if err != nil {
		return nil, err
	}
	flows, err := s.flowRepo.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return flows, nil
}

// ListOrders 商户订单列表
func (s *OrderService) ListOrders(ctx context.Context, merchantNo string, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	merchant, err := s.merchantRepo.GetByMerchantNo(ctx, merchantNo)
	if err != nil {
		return nil, 0, storeError(err)
	}
	if merchant == nil {
		return nil, 0, ErrMerchantNotFound
	}
	filter.MerchantID = merchant.ID
	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err)
	}
	return orders, total, nil
}
