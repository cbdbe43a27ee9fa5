package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// deadOrderStatuses 幂等键不再占用的失败/关闭终态
var deadOrderStatuses = []string{
	constants.OrderStatusCreateFailed,
	constants.OrderStatusCancelled,
	constants.OrderStatusTimeout,
}

// timeoutableStatuses 超时扫描覆盖的状态；created 为下单中途失败遗留的订单
var timeoutableStatuses = []string{
	constants.OrderStatusCreated,
	constants.OrderStatusPendingPayment,
}

// TimeoutChange 批量超时实际变更的一行，FromStatus 为变更前状态
type TimeoutChange struct {
	Order      models.Order
	FromStatus string
}

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	FindLiveByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	UpdateStatusIf(ctx context.Context, id uint, expected, next string, fields map[string]interface{}) (int64, error)
	BulkTimeout(ctx context.Context, merchantID uint, cutoff, now time.Time, buildFlow func(change TimeoutChange) models.OrderFlow) ([]TimeoutChange, error)
	List(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Transaction 开启事务
func (r *GormOrderRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create 创建订单
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("order_no = ?", strings.TrimSpace(orderNo)).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindLiveByIdempotencyKey 查找幂等键下仍然有效的订单（排除创建失败/取消/超时）
func (r *GormOrderRepository) FindLiveByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND status NOT IN ?", key, deadOrderStatuses).
		Order("id DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatusIf 条件更新订单状态，仅当当前状态等于 expected 时生效，返回影响行数
func (r *GormOrderRepository) UpdateStatusIf(ctx context.Context, id uint, expected, next string, fields map[string]interface{}) (int64, error) {
	updates := make(map[string]interface{}, len(fields)+2)
	for key, value := range fields {
		updates[key] = value
	}
	updates["status"] = next
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// BulkTimeout 将商户下创建时间早于 cutoff 且仍为 created/pending_payment 的订单批量置为超时
// 状态谓词本身就是并发保护：已被回调推进的订单不会命中。
// 按状态逐个处理以记录准确的变更前状态，流水与状态更新同事务写入。
func (r *GormOrderRepository) BulkTimeout(ctx context.Context, merchantID uint, cutoff, now time.Time, buildFlow func(change TimeoutChange) models.OrderFlow) ([]TimeoutChange, error) {
	var changes []TimeoutChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, from := range timeoutableStatuses {
			changed, err := timeoutByStatus(tx, merchantID, from, cutoff, now)
			if err != nil {
				return err
			}
			for _, order := range changed {
				changes = append(changes, TimeoutChange{Order: order, FromStatus: from})
			}
		}
		if buildFlow == nil || len(changes) == 0 {
			return nil
		}
		flows := make([]models.OrderFlow, 0, len(changes))
		for _, change := range changes {
			flows = append(flows, buildFlow(change))
		}
		return tx.Create(&flows).Error
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func timeoutByStatus(tx *gorm.DB, merchantID uint, from string, cutoff, now time.Time) ([]models.Order, error) {
	query := tx.Where("merchant_id = ? AND status = ? AND created_at < ?", merchantID, from, cutoff).
		Order("id ASC")
	if supportsRowLock(tx) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var candidates []models.Order
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(candidates))
	for _, order := range candidates {
		ids = append(ids, order.ID)
	}

	result := tx.Model(&models.Order{}).
		Where("id IN ? AND status = ? AND created_at < ?", ids, from, cutoff).
		Updates(map[string]interface{}{
			"status":     constants.OrderStatusTimeout,
			"closed_at":  now,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	changed := candidates
	if result.RowsAffected != int64(len(candidates)) {
		// 部分行在查询与更新之间被其他流程推进，重新读取本次真正写入的行
		changed = nil
		if err := tx.Where("id IN ? AND status = ? AND updated_at = ?", ids, constants.OrderStatusTimeout, now).
			Order("id ASC").
			Find(&changed).Error; err != nil {
			return nil, err
		}
	}
	for i := range changed {
		changed[i].Status = constants.OrderStatusTimeout
		closedAt := now
		changed[i].ClosedAt = &closedAt
		changed[i].UpdatedAt = now
	}
	return changed, nil
}

// List 订单列表
func (r *GormOrderRepository) List(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TradeType != "" {
		query = query.Where("trade_type = ?", filter.TradeType)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no "+likeOperator(r.db)+" ?", "%"+filter.OrderNo+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Order("id DESC").Scopes(paginate(filter.Page, filter.PageSize)).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
