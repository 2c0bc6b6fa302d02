package repository

import (
	"context"
	"time"

	"powertrade/internal/lock"
	"powertrade/internal/model"
)

// Store runs lifecycle operations as atomic transactions. Everything a
// transaction wrote is rolled back when fn returns an error, and every
// lock acquired through Tx.Locker is released at transaction end.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories of one open transaction.
type Tx interface {
	Orders() OrderRepository
	Contracts() ContractRepository
	Fills() FillRepository
	Audits() AuditRepository
	Products() ProductRepository
	Locker() lock.Locker
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	Get(ctx context.Context, id string) (model.Order, error)
	// LiveByOrganization returns every order that still contributes to
	// exposure, which is everything except cancelled, rejected and
	// expired orders. Filled orders stay live: they are confirmed
	// exposure.
	LiveByOrganization(ctx context.Context, organizationID string) ([]model.Order, error)
	// DueForExpiry returns submitted orders whose validUntil elapsed.
	DueForExpiry(ctx context.Context, now time.Time) ([]model.Order, error)
	Update(ctx context.Context, order *model.Order) error
}

type ContractRepository interface {
	Create(ctx context.Context, contract *model.Contract) error
	// ActiveByOrganization returns active contracts whose validity window
	// covers at.
	ActiveByOrganization(ctx context.Context, organizationID string, at time.Time) ([]model.Contract, error)
}

type FillRepository interface {
	Append(ctx context.Context, fill *model.Fill) error
	ByOrder(ctx context.Context, orderID string) ([]model.Fill, error)
}

type AuditRepository interface {
	Append(ctx context.Context, record *model.AuditRecord) error
}

type ProductRepository interface {
	Upsert(ctx context.Context, product *model.Product) error
	BySymbol(ctx context.Context, symbol string) (model.Product, error)
}
