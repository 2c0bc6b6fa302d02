package repository

import (
	"context"
	"sync"
	"time"

	"powertrade/internal/lock"
	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/pkg/exception"
)

// MemoryStore is an in-process store for tests and local runs. Writes are
// staged per transaction and applied only when the transaction function
// returns nil, mirroring the rollback semantics of the postgres store.
// Reads observe committed state; same-scope writers are serialized by the
// lock table, so a transaction never needs to read its own staged writes.
type MemoryStore struct {
	mu    sync.RWMutex
	locks *lock.Table

	orders    map[string]model.Order
	contracts map[string]model.Contract
	fills     map[string][]model.Fill
	audits    []model.AuditRecord
	products  map[string]model.Product
}

// NewMemoryStore creates an empty store with the given lock wait bound.
func NewMemoryStore(lockWait time.Duration) *MemoryStore {
	return &MemoryStore{
		locks:     lock.NewTable(lockWait),
		orders:    make(map[string]model.Order),
		contracts: make(map[string]model.Contract),
		fills:     make(map[string][]model.Fill),
		products:  make(map[string]model.Product),
	}
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	locker := s.locks.Begin()
	defer locker.ReleaseAll()

	tx := &memoryTx{store: s, locker: locker}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, apply := range tx.staged {
		apply()
	}
	return nil
}

// AuditTrail returns a copy of all appended audit records.
func (s *MemoryStore) AuditTrail() []model.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AuditRecord, len(s.audits))
	copy(out, s.audits)
	return out
}

// FillsOf returns a copy of the fills recorded for an order.
func (s *MemoryStore) FillsOf(orderID string) []model.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Fill, len(s.fills[orderID]))
	copy(out, s.fills[orderID])
	return out
}

type memoryTx struct {
	store  *MemoryStore
	locker *lock.TxLocker
	staged []func()
}

func (t *memoryTx) Orders() OrderRepository       { return &memOrders{tx: t} }
func (t *memoryTx) Contracts() ContractRepository { return &memContracts{tx: t} }
func (t *memoryTx) Fills() FillRepository         { return &memFills{tx: t} }
func (t *memoryTx) Audits() AuditRepository       { return &memAudits{tx: t} }
func (t *memoryTx) Products() ProductRepository   { return &memProducts{tx: t} }
func (t *memoryTx) Locker() lock.Locker           { return t.locker }

func (t *memoryTx) stage(apply func()) {
	t.staged = append(t.staged, apply)
}

type memOrders struct {
	tx *memoryTx
}

func (r *memOrders) Create(_ context.Context, order *model.Order) error {
	staged := *order
	r.tx.stage(func() {
		r.tx.store.orders[staged.ID] = staged
	})
	return nil
}

func (r *memOrders) Get(_ context.Context, id string) (model.Order, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return model.Order{}, exception.ErrOrderNotFound
	}
	return order, nil
}

func (r *memOrders) LiveByOrganization(_ context.Context, organizationID string) ([]model.Order, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, order := range s.orders {
		if order.OrganizationID != organizationID || order.Status.IsExcluded() {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *memOrders) DueForExpiry(_ context.Context, now time.Time) ([]model.Order, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, order := range s.orders {
		if order.Status != enum.OrderStatusSubmitted || order.ValidUntil == nil {
			continue
		}
		if order.ValidUntil.Before(now) {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *memOrders) Update(_ context.Context, order *model.Order) error {
	staged := *order
	r.tx.stage(func() {
		r.tx.store.orders[staged.ID] = staged
	})
	return nil
}

type memContracts struct {
	tx *memoryTx
}

func (r *memContracts) Create(_ context.Context, contract *model.Contract) error {
	staged := *contract
	r.tx.stage(func() {
		r.tx.store.contracts[staged.ID] = staged
	})
	return nil
}

func (r *memContracts) ActiveByOrganization(_ context.Context, organizationID string, at time.Time) ([]model.Contract, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Contract
	for _, contract := range s.contracts {
		if contract.OrganizationID != organizationID || !contract.IsActive {
			continue
		}
		if contract.Covers(at) {
			out = append(out, contract)
		}
	}
	return out, nil
}

type memFills struct {
	tx *memoryTx
}

func (r *memFills) Append(_ context.Context, fill *model.Fill) error {
	staged := *fill
	r.tx.stage(func() {
		r.tx.store.fills[staged.OrderID] = append(r.tx.store.fills[staged.OrderID], staged)
	})
	return nil
}

func (r *memFills) ByOrder(_ context.Context, orderID string) ([]model.Fill, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Fill, len(s.fills[orderID]))
	copy(out, s.fills[orderID])
	return out, nil
}

type memAudits struct {
	tx *memoryTx
}

func (r *memAudits) Append(_ context.Context, record *model.AuditRecord) error {
	staged := *record
	r.tx.stage(func() {
		r.tx.store.audits = append(r.tx.store.audits, staged)
	})
	return nil
}

type memProducts struct {
	tx *memoryTx
}

func (r *memProducts) Upsert(_ context.Context, product *model.Product) error {
	staged := *product
	r.tx.stage(func() {
		r.tx.store.products[staged.Symbol] = staged
	})
	return nil
}

func (r *memProducts) BySymbol(_ context.Context, symbol string) (model.Product, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[symbol]
	if !ok {
		return model.Product{}, exception.ErrProductNotFound
	}
	return product, nil
}
