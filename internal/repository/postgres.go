package repository

import (
	"context"
	"time"

	stderrors "errors"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"powertrade/internal/lock"
	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/pkg/exception"
)

var excludedStatuses = []enum.OrderStatus{
	enum.OrderStatusCancelled,
	enum.OrderStatusRejected,
	enum.OrderStatusExpired,
}

// GormStore is the postgres-backed store. Transactions map to database
// transactions; the locker maps to transaction-scoped advisory locks, so
// lock release is tied to commit or rollback by the database itself.
type GormStore struct {
	db          *gorm.DB
	lockTimeout int64
}

// NewGormStore wraps an open gorm connection. lockTimeoutMillis bounds
// advisory lock waits; zero keeps the session default.
func NewGormStore(db *gorm.DB, lockTimeoutMillis int64) *GormStore {
	return &GormStore{db: db, lockTimeout: lockTimeoutMillis}
}

// AutoMigrate creates or updates the schema for all engine models.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&model.Order{},
		&model.Contract{},
		&model.Fill{},
		&model.AuditRecord{},
		&model.Product{},
	)
}

func (s *GormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormTx{
			tx:     tx,
			locker: lock.NewAdvisoryLocker(tx, s.lockTimeout),
		})
	})
}

type gormTx struct {
	tx     *gorm.DB
	locker *lock.AdvisoryLocker
}

func (t *gormTx) Orders() OrderRepository       { return &gormOrders{db: t.tx} }
func (t *gormTx) Contracts() ContractRepository { return &gormContracts{db: t.tx} }
func (t *gormTx) Fills() FillRepository         { return &gormFills{db: t.tx} }
func (t *gormTx) Audits() AuditRepository       { return &gormAudits{db: t.tx} }
func (t *gormTx) Products() ProductRepository   { return &gormProducts{db: t.tx} }
func (t *gormTx) Locker() lock.Locker           { return t.locker }

type gormOrders struct {
	db *gorm.DB
}

func (r *gormOrders) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (r *gormOrders) Get(ctx context.Context, id string) (model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, exception.ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "get order")
	}
	return order, nil
}

func (r *gormOrders) LiveByOrganization(ctx context.Context, organizationID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Where("status NOT IN ?", excludedStatuses).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "list live orders")
	}
	return orders, nil
}

func (r *gormOrders) DueForExpiry(ctx context.Context, now time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", enum.OrderStatusSubmitted).
		Where("valid_until IS NOT NULL AND valid_until < ?", now).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "list due orders")
	}
	return orders, nil
}

func (r *gormOrders) Update(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		return errors.Wrap(err, "update order")
	}
	return nil
}

type gormContracts struct {
	db *gorm.DB
}

func (r *gormContracts) Create(ctx context.Context, contract *model.Contract) error {
	if err := r.db.WithContext(ctx).Create(contract).Error; err != nil {
		return errors.Wrap(err, "create contract")
	}
	return nil
}

func (r *gormContracts) ActiveByOrganization(ctx context.Context, organizationID string, at time.Time) ([]model.Contract, error) {
	var contracts []model.Contract
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Where("valid_from <= ? AND valid_to >= ?", at, at).
		Find(&contracts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list active contracts")
	}
	return contracts, nil
}

type gormFills struct {
	db *gorm.DB
}

func (r *gormFills) Append(ctx context.Context, fill *model.Fill) error {
	if err := r.db.WithContext(ctx).Create(fill).Error; err != nil {
		return errors.Wrap(err, "append fill")
	}
	return nil
}

func (r *gormFills) ByOrder(ctx context.Context, orderID string) ([]model.Fill, error) {
	var fills []model.Fill
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&fills).Error
	if err != nil {
		return nil, errors.Wrap(err, "list fills")
	}
	return fills, nil
}

type gormAudits struct {
	db *gorm.DB
}

func (r *gormAudits) Append(ctx context.Context, record *model.AuditRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, "append audit record")
	}
	return nil
}

type gormProducts struct {
	db *gorm.DB
}

func (r *gormProducts) Upsert(ctx context.Context, product *model.Product) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).
		Create(product).Error
	if err != nil {
		return errors.Wrap(err, "upsert product")
	}
	return nil
}

func (r *gormProducts) BySymbol(ctx context.Context, symbol string) (model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).First(&product, "symbol = ?", symbol).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, exception.ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, errors.Wrap(err, "get product")
	}
	return product, nil
}
