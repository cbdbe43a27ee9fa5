package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"
)

func TestCreateOrderMovesToPendingPayment(t *testing.T) {
	f := setupServiceTest(t)
	order := f.createOrder(t, "biz-1")

	if order.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", order.Status)
	}
	stored := f.reload(t, order.OrderNo)
	if stored.PrepayID != "prepay-"+order.OrderNo || stored.PayURL == "" {
		t.Fatalf("prepay fields not stored: %+v", stored)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(f.clock.Now().Add(30*time.Minute)) {
		t.Fatalf("unexpected expires_at: %v", stored.ExpiresAt)
	}
	if stored.TradeSource != constants.TradeSourceWechat {
		t.Fatalf("unexpected trade source: %s", stored.TradeSource)
	}
	if f.countFlows(t, order.OrderNo, constants.OrderStatusCreated) != 1 ||
		f.countFlows(t, order.OrderNo, constants.OrderStatusPendingPayment) != 1 {
		t.Fatalf("expected created and pending_payment flows")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("pending_payment should not notify, got %d events", len(f.events.events))
	}
}

func TestCreateOrderReusesLiveOrder(t *testing.T) {
	f := setupServiceTest(t)
	first := f.createOrder(t, "biz-reuse")

	result, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "biz-reuse",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(1000),
	})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if !result.Reused || result.Order.OrderNo != first.OrderNo {
		t.Fatalf("expected reuse of %s, got %+v", first.OrderNo, result)
	}
	if f.gateway.prepayCalls != 1 {
		t.Fatalf("expected one prepay call, got %d", f.gateway.prepayCalls)
	}
}

func TestCreateOrderConcurrentSameKeyCreatesOneRow(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	orderNos := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := f.svc.CreateOrder(ctx, CreateOrderInput{
				MerchantNo:  f.merchant.MerchantNo,
				BusinessKey: "biz-concurrent",
				TradeType:   constants.TradeTypeWechatNative,
				Amount:      models.NewMoneyFromFen(500),
			})
			errs[idx] = err
			if result != nil {
				orderNos[idx] = result.Order.OrderNo
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d failed: %v", i, err)
		}
		if orderNos[i] != orderNos[0] {
			t.Fatalf("workers returned different orders: %v", orderNos)
		}
	}
	var count int64
	if err := f.db.Model(&models.Order{}).Where("business_key = ?", "biz-concurrent").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one order row, got %d", count)
	}
}

func TestCreateOrderPrepayFailureReleasesKey(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	f.gateway.prepayErr = errors.New("gateway down")

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "biz-fail",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(100),
	})
	if !errors.Is(err, ErrPrepayFailed) {
		t.Fatalf("expected ErrPrepayFailed, got %v", err)
	}
	var failed models.Order
	if err := f.db.Where("business_key = ?", "biz-fail").First(&failed).Error; err != nil {
		t.Fatalf("load failed order: %v", err)
	}
	if failed.Status != constants.OrderStatusCreateFailed || failed.FailReason == "" || failed.ClosedAt == nil {
		t.Fatalf("unexpected failed order: %+v", failed)
	}

	f.gateway.prepayErr = nil
	result, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "biz-fail",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(100),
	})
	if err != nil {
		t.Fatalf("retry create failed: %v", err)
	}
	if result.Reused || result.Order.OrderNo == failed.OrderNo {
		t.Fatalf("expected a fresh order after create_failed")
	}
}

func TestCreateOrderCancelledDuringPrepayStillCompensates(t *testing.T) {
	f := setupServiceTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gateway.prepayCancel = cancel

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "biz-disconnect",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(100),
	})
	if !errors.Is(err, ErrPrepayFailed) {
		t.Fatalf("expected ErrPrepayFailed, got %v", err)
	}
	var failed models.Order
	if err := f.db.Where("business_key = ?", "biz-disconnect").First(&failed).Error; err != nil {
		t.Fatalf("load failed order: %v", err)
	}
	if failed.Status != constants.OrderStatusCreateFailed {
		t.Fatalf("compensation must survive caller cancellation, got %s", failed.Status)
	}
	if f.countFlows(t, failed.OrderNo, constants.OrderStatusCreateFailed) != 1 {
		t.Fatalf("expected one create_failed flow")
	}

	f.gateway.prepayCancel = nil
	result, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "biz-disconnect",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(100),
	})
	if err != nil {
		t.Fatalf("retry create failed: %v", err)
	}
	if result.Reused || result.Order.OrderNo == failed.OrderNo {
		t.Fatalf("expected a fresh order after disconnect")
	}
}

func TestCreateOrderUnsupportedTradeType(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	input := CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "biz-jsapi",
		TradeType:   constants.TradeTypeWechatJSAPI,
		Amount:      models.NewMoneyFromFen(100),
	}
	if _, err := f.svc.CreateOrder(ctx, input); !errors.Is(err, ErrChannelUnsupported) {
		t.Fatalf("expected ErrChannelUnsupported, got %v", err)
	}

	// 锁已释放，同一键的下一次调用不会因等锁失败
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.CreateOrder(ctx, input)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrChannelUnsupported) {
			t.Fatalf("expected ErrChannelUnsupported again, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second call blocked on create lock")
	}

	input.TradeType = "alipay_page"
	if _, err := f.svc.CreateOrder(ctx, input); !errors.Is(err, ErrNoChannelHandler) {
		t.Fatalf("expected ErrNoChannelHandler, got %v", err)
	}
}

func TestCreateOrderValidatesInput(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()

	cases := []CreateOrderInput{
		{BusinessKey: "b", TradeType: constants.TradeTypeWechatNative, Amount: models.NewMoneyFromFen(1)},
		{MerchantNo: f.merchant.MerchantNo, TradeType: constants.TradeTypeWechatNative, Amount: models.NewMoneyFromFen(1)},
		{MerchantNo: f.merchant.MerchantNo, BusinessKey: "b", TradeType: constants.TradeTypeWechatNative},
	}
	for i, input := range cases {
		if _, err := f.svc.CreateOrder(ctx, input); !errors.Is(err, ErrInvalidOrderInput) {
			t.Fatalf("case %d: expected ErrInvalidOrderInput, got %v", i, err)
		}
	}

	if _, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		MerchantNo:  "missing",
		BusinessKey: "b",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(1),
	}); !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("expected ErrMerchantNotFound, got %v", err)
	}

	if err := f.db.Model(&models.Merchant{}).Where("id = ?", f.merchant.ID).Update("is_open", false).Error; err != nil {
		t.Fatalf("close merchant failed: %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: "b",
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(1),
	}); !errors.Is(err, ErrMerchantClosed) {
		t.Fatalf("expected ErrMerchantClosed, got %v", err)
	}
}
