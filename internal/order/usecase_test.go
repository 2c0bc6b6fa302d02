package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/internal/notify"
	"powertrade/internal/obs"
	"powertrade/internal/repository"
	"powertrade/pkg/exception"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mw(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *sinkRecorder) Publish(e notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sinkRecorder) kinds() []enum.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enum.EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func newFixture(t *testing.T) (*Usecase, *repository.MemoryStore, *sinkRecorder) {
	t.Helper()
	store := repository.NewMemoryStore(2 * time.Second)
	sink := &sinkRecorder{}
	use := NewUsecase(store, sink, obs.NewMetrics())
	use.now = func() time.Time { return testNow }
	return use, store, sink
}

func seedContract(t *testing.T, store *repository.MemoryStore, organizationID string, symbols []string, limits model.YearlyLimits) {
	t.Helper()
	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Contracts().Create(ctx, &model.Contract{
			ID:              "contract-" + organizationID,
			OrganizationID:  organizationID,
			AllowedProducts: symbols,
			YearlyLimits:    limits,
			ValidFrom:       testNow.AddDate(-1, 0, 0),
			ValidTo:         testNow.AddDate(3, 0, 0),
			IsActive:        true,
		})
	})
	require.NoError(t, err)
}

func caller(organizationID string) Caller {
	return Caller{OrganizationID: organizationID, UserID: "user-1", Role: enum.RoleClient}
}

func submitBuy(use *Usecase, organizationID, symbol string, qty int64) (model.Order, error) {
	return use.Submit(context.Background(), SubmitRequest{
		InstrumentSymbol: symbol,
		Side:             enum.SideBuy,
		Quantity:         mw(qty),
		Caller:           caller(organizationID),
	})
}

func TestSubmitAcceptsWithinYearlyLimit(t *testing.T) {
	use, store, sink := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(10)})

	order, err := submitBuy(use, "org-1", "BASE_Y-26", 6)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusSubmitted, order.Status)
	assert.True(t, order.QuantityMW.Equal(mw(6)))

	_, err = submitBuy(use, "org-1", "BASE_Y-26", 5)
	violation, ok := exception.AsRuleViolation(err)
	require.True(t, ok, "expected rule violation, got %v", err)
	assert.Equal(t, exception.RuleLimitExceeded, violation.Kind)
	assert.True(t, violation.Limit.Equal(mw(10)))
	assert.True(t, violation.Used.Equal(mw(11)))

	assert.Equal(t, []enum.EventKind{enum.EventOrderCreated, enum.EventOrderRejected}, sink.kinds())
}

func TestSubmitSellRequiresConfirmedCoverage(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(20)})

	buy, err := submitBuy(use, "org-1", "BASE_Y-26", 10)
	require.NoError(t, err)
	_, err = use.Fill(context.Background(), FillRequest{OrderID: buy.ID, Price: mw(80), QuantityMW: mw(10)})
	require.NoError(t, err)

	// 10 MW confirmed: a 4 MW sell is covered.
	sell, err := use.Submit(context.Background(), SubmitRequest{
		InstrumentSymbol: "BASE_Y-26",
		Side:             enum.SideSell,
		Quantity:         mw(4),
		Caller:           caller("org-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusSubmitted, sell.Status)

	// The pending 4 MW sell does not release capacity: 10-4=6 < 7.
	_, err = use.Submit(context.Background(), SubmitRequest{
		InstrumentSymbol: "BASE_Y-26",
		Side:             enum.SideSell,
		Quantity:         mw(7),
		Caller:           caller("org-1"),
	})
	violation, ok := exception.AsRuleViolation(err)
	require.True(t, ok, "expected rule violation, got %v", err)
	assert.Equal(t, exception.RuleInsufficientCoverage, violation.Kind)
	assert.True(t, violation.Available.Equal(mw(6)), "available %s", violation.Available)
	assert.True(t, violation.Requested.Equal(mw(7)))
}

func TestFillComputesVolumeWeightedAverage(t *testing.T) {
	use, store, sink := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_M-07-26"}, model.YearlyLimits{2026: mw(20)})

	order, err := submitBuy(use, "org-1", "BASE_M-07-26", 10)
	require.NoError(t, err)

	order, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: mw(100), QuantityMW: mw(3)})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPartiallyFilled, order.Status)
	assert.True(t, order.FilledMW.Equal(mw(3)))
	assert.True(t, order.AverageFillPrice.Equal(mw(100)), "avg %s", order.AverageFillPrice)

	order, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: mw(110), QuantityMW: mw(7)})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusFilled, order.Status)
	assert.True(t, order.FilledMW.Equal(mw(10)))
	assert.True(t, order.AverageFillPrice.Equal(mw(107)), "avg %s", order.AverageFillPrice)

	require.Len(t, store.FillsOf(order.ID), 2)
	assert.Contains(t, sink.kinds(), enum.EventOrderPartiallyFilled)
	assert.Contains(t, sink.kinds(), enum.EventOrderFilled)
}

func TestFillRejectsOverfillAndBadInput(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_M-07-26"}, model.YearlyLimits{2026: mw(20)})

	order, err := submitBuy(use, "org-1", "BASE_M-07-26", 5)
	require.NoError(t, err)

	_, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: mw(100), QuantityMW: mw(6)})
	assert.ErrorIs(t, err, exception.ErrFillExceedsRemaining)

	_, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: decimal.Zero, QuantityMW: mw(1)})
	assert.ErrorIs(t, err, exception.ErrInvalidPrice)

	_, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: mw(100), QuantityMW: decimal.Zero})
	assert.ErrorIs(t, err, exception.ErrInvalidQuantity)

	_, err = use.Fill(context.Background(), FillRequest{OrderID: "missing", Price: mw(100), QuantityMW: mw(1)})
	assert.ErrorIs(t, err, exception.ErrOrderNotFound)
}

func TestCancelRejectsTerminalOrder(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_M-07-26"}, model.YearlyLimits{2026: mw(20)})

	order, err := submitBuy(use, "org-1", "BASE_M-07-26", 5)
	require.NoError(t, err)
	order, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: mw(100), QuantityMW: mw(5)})
	require.NoError(t, err)
	require.Equal(t, enum.OrderStatusFilled, order.Status)

	_, err = use.Cancel(context.Background(), CancelRequest{OrderID: order.ID, Caller: caller("org-1")})
	assert.ErrorIs(t, err, exception.ErrOrderTerminal)

	err = store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.Orders().Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.OrderStatusFilled, current.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestCancelChecksOwnershipAndRole(t *testing.T) {
	use, store, sink := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_M-07-26"}, model.YearlyLimits{2026: mw(20)})

	order, err := submitBuy(use, "org-1", "BASE_M-07-26", 5)
	require.NoError(t, err)

	_, err = use.Cancel(context.Background(), CancelRequest{OrderID: order.ID, Caller: caller("org-2")})
	assert.ErrorIs(t, err, exception.ErrNotOwner)

	cancelled, err := use.Cancel(context.Background(), CancelRequest{
		OrderID: order.ID,
		Caller:  Caller{OrganizationID: "org-2", UserID: "trader-1", Role: enum.RoleTrader},
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCancelled, cancelled.Status)
	assert.Contains(t, sink.kinds(), enum.EventOrderCancelledByTrader)
}

func TestSubmitWithoutContractOrPermission(t *testing.T) {
	use, store, _ := newFixture(t)

	_, err := submitBuy(use, "org-1", "BASE_Y-26", 1)
	violation, ok := exception.AsRuleViolation(err)
	require.True(t, ok)
	assert.Equal(t, exception.RuleNoActiveContract, violation.Kind)

	seedContract(t, store, "org-1", []string{"BASE_Q-1-26"}, model.YearlyLimits{2026: mw(10)})
	_, err = submitBuy(use, "org-1", "BASE_Y-26", 1)
	violation, ok = exception.AsRuleViolation(err)
	require.True(t, ok)
	assert.Equal(t, exception.RuleProductNotPermitted, violation.Kind)
}

func TestSubmitRejectsUnresolvableSymbol(t *testing.T) {
	use, store, sink := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(10)})

	_, err := submitBuy(use, "org-1", "BASE_Y-2026", 1)
	violation, ok := exception.AsRuleViolation(err)
	require.True(t, ok)
	assert.Equal(t, exception.RuleInvalidProductPeriod, violation.Kind)
	assert.Equal(t, []enum.EventKind{enum.EventOrderRejected}, sink.kinds())
}

func TestSubmitStacksLimitsAcrossContracts(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(6)})

	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Contracts().Create(ctx, &model.Contract{
			ID:              "contract-org-1-b",
			OrganizationID:  "org-1",
			AllowedProducts: []string{"BASE_Y-26"},
			YearlyLimits:    model.YearlyLimits{2026: mw(6)},
			ValidFrom:       testNow.AddDate(-1, 0, 0),
			ValidTo:         testNow.AddDate(3, 0, 0),
			IsActive:        true,
		})
	})
	require.NoError(t, err)

	// 10 MW fits only against the stacked 12 MW limit.
	order, err := submitBuy(use, "org-1", "BASE_Y-26", 10)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusSubmitted, order.Status)
}

func TestSubmitPercentQuantity(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(10)})

	order, err := use.Submit(context.Background(), SubmitRequest{
		InstrumentSymbol: "BASE_Y-26",
		Side:             enum.SideBuy,
		QuantityType:     enum.QuantityTypePercent,
		Quantity:         mw(50),
		Caller:           caller("org-1"),
	})
	require.NoError(t, err)
	assert.True(t, order.QuantityMW.Equal(mw(5)), "quantity %s", order.QuantityMW)
}

func TestSubmitRejectsInactiveCatalogProduct(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(10)})

	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Products().Upsert(ctx, &model.Product{
			Symbol:   "BASE_Y-26",
			Profile:  enum.ProfileBase,
			IsActive: false,
		})
	})
	require.NoError(t, err)

	_, err = submitBuy(use, "org-1", "BASE_Y-26", 1)
	violation, ok := exception.AsRuleViolation(err)
	require.True(t, ok)
	assert.Equal(t, exception.RuleProductNotPermitted, violation.Kind)
}

func TestConcurrentSubmitsNeverOverbook(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(10)})

	const workers = 5
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := submitBuy(use, "org-1", "BASE_Y-26", 3)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		violation, ok := exception.AsRuleViolation(err)
		require.True(t, ok, "unexpected error: %v", err)
		assert.Equal(t, exception.RuleLimitExceeded, violation.Kind)
		rejected++
	}

	// 3 MW each against a 10 MW limit: exactly three fit.
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 2, rejected)
}

func TestExpireDueReleasesCapacity(t *testing.T) {
	use, store, sink := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_Y-26"}, model.YearlyLimits{2026: mw(10)})

	validUntil := testNow.Add(time.Hour)
	_, err := use.Submit(context.Background(), SubmitRequest{
		InstrumentSymbol: "BASE_Y-26",
		Side:             enum.SideBuy,
		Quantity:         mw(8),
		ValidUntil:       &validUntil,
		Caller:           caller("org-1"),
	})
	require.NoError(t, err)

	// Capacity is consumed while the order is live.
	_, err = submitBuy(use, "org-1", "BASE_Y-26", 8)
	_, ok := exception.AsRuleViolation(err)
	require.True(t, ok)

	expired, err := use.ExpireDue(context.Background(), testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Contains(t, sink.kinds(), enum.EventOrderExpired)

	_, err = submitBuy(use, "org-1", "BASE_Y-26", 8)
	require.NoError(t, err)
}

func TestSubmitWritesAuditTrail(t *testing.T) {
	use, store, _ := newFixture(t)
	seedContract(t, store, "org-1", []string{"BASE_M-07-26"}, model.YearlyLimits{2026: mw(20)})

	order, err := submitBuy(use, "org-1", "BASE_M-07-26", 5)
	require.NoError(t, err)
	_, err = use.Fill(context.Background(), FillRequest{OrderID: order.ID, Price: mw(90), QuantityMW: mw(5)})
	require.NoError(t, err)

	trail := store.AuditTrail()
	require.Len(t, trail, 2)
	assert.Equal(t, actionSubmit, trail[0].Action)
	assert.Equal(t, enum.OrderStatusSubmitted, trail[0].ToStatus)
	assert.Equal(t, actionFill, trail[1].Action)
	assert.Equal(t, enum.OrderStatusFilled, trail[1].ToStatus)
}
