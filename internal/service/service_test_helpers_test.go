package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paycore/internal/channel"
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/lock"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/notify"
	"github.com/paycore/internal/payment"
	"github.com/paycore/internal/repository"
	"github.com/paycore/internal/rule"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingEvents) Publish(event notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return true
}

func (r *recordingEvents) byStatus(status string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, event := range r.events {
		if event.Status == status {
			out = append(out, event)
		}
	}
	return out
}

type stubGateway struct {
	mu           sync.Mutex
	prepayErr    error
	prepayCancel context.CancelFunc
	prepayCalls  int
	refundErr    error
	refundResult *payment.RefundResult
	refundCalls  int
	queryResult  *payment.QueryResult
}

func (g *stubGateway) Kind() string { return constants.ChannelKindWechat }

func (g *stubGateway) Prepay(ctx context.Context, req payment.PrepayRequest) (*payment.PrepayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prepayCalls++
	if g.prepayCancel != nil {
		// 模拟调用方在预下单途中断开
		g.prepayCancel()
		return nil, ctx.Err()
	}
	if g.prepayErr != nil {
		return nil, g.prepayErr
	}
	return &payment.PrepayResult{PrepayID: "prepay-" + req.OrderNo, PayURL: "weixin://wxpay/" + req.OrderNo}, nil
}

func (g *stubGateway) Refund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.refundResult != nil {
		return g.refundResult, nil
	}
	return &payment.RefundResult{ProviderRefundNo: "wx-refund-" + req.RefundNo, Status: constants.OrderStatusRefundRequested}, nil
}

func (g *stubGateway) Query(_ context.Context, req payment.QueryRequest) (*payment.QueryResult, error) {
	if g.queryResult == nil {
		return nil, errors.New("query not configured")
	}
	result := *g.queryResult
	result.OrderNo = req.OrderNo
	return &result, nil
}

type serviceFixture struct {
	svc      *OrderService
	db       *gorm.DB
	events   *recordingEvents
	gateway  *stubGateway
	merchant *models.Merchant
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupServiceTest(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:order_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	merchant, err := models.SeedDemoMerchant(db, "M1001", "demo", 30, []models.DemoChannel{
		{TradeType: constants.TradeTypeWechatNative, Name: "native", RuleName: constants.RuleNameDefault},
		{TradeType: constants.TradeTypeWechatH5, Name: "h5", RuleName: constants.RuleNameDefault},
	})
	if err != nil {
		t.Fatalf("seed merchant failed: %v", err)
	}

	channelRepo := repository.NewChannelConfigRepository(db)
	events := &recordingEvents{}
	gateway := &stubGateway{}
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewOrderService(OrderServiceDeps{
		OrderRepo:    repository.NewOrderRepository(db),
		FlowRepo:     repository.NewOrderFlowRepository(db),
		MerchantRepo: repository.NewMerchantRepository(db),
		ChannelRepo:  channelRepo,
		Locks:        lock.NewObject(),
		Resolver:     channel.NewResolver(channel.DefaultStrategies(channelRepo)...),
		Rules:        rule.NewRegistry(rule.PassThrough{}, rule.PaymentPoints{}),
		Gateways:     payment.NewRegistry(gateway),
		Events:       events,
	}, OrderServiceOptions{NotifyBaseURL: "https://pay.example.com/api/v1/callbacks/wechat"})
	svc.SetClock(clock.Now)
	return &serviceFixture{svc: svc, db: db, events: events, gateway: gateway, merchant: merchant, clock: clock}
}

func (f *serviceFixture) createOrder(t *testing.T, businessKey string) *models.Order {
	t.Helper()
	result, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		MerchantNo:  f.merchant.MerchantNo,
		BusinessKey: businessKey,
		TradeType:   constants.TradeTypeWechatNative,
		Amount:      models.NewMoneyFromFen(1000),
		Description: "test order",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return result.Order
}

func (f *serviceFixture) reload(t *testing.T, orderNo string) models.Order {
	t.Helper()
	var order models.Order
	if err := f.db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return order
}

func (f *serviceFixture) countFlows(t *testing.T, orderNo, toStatus string) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.OrderFlow{}).Where("order_no = ? AND to_status = ?", orderNo, toStatus).Count(&count).Error; err != nil {
		t.Fatalf("count flows failed: %v", err)
	}
	return count
}
