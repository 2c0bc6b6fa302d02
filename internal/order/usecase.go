package order

import (
	"context"
	"fmt"
	"time"

	stderrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"powertrade/internal/ledger"
	"powertrade/internal/lock"
	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/internal/notify"
	"powertrade/internal/obs"
	"powertrade/internal/product"
	"powertrade/internal/repository"
	"powertrade/internal/risk"
	"powertrade/pkg/exception"
)

// fillTolerance absorbs rounding when comparing fill quantities against
// the order quantity.
var fillTolerance = decimal.NewFromFloat(0.0001)

const (
	actionSubmit = "SUBMIT"
	actionFill   = "FILL"
	actionCancel = "CANCEL"
	actionExpire = "EXPIRE"

	percentBase = 100
)

// Caller identifies who invokes a lifecycle operation.
type Caller struct {
	OrganizationID string
	UserID         string
	Role           enum.Role
}

// SubmitRequest is a new order submission.
type SubmitRequest struct {
	InstrumentSymbol string
	Side             enum.Side
	QuantityType     enum.QuantityType
	Quantity         decimal.Decimal
	LimitPrice       decimal.Decimal
	ValidUntil       *time.Time
	Caller           Caller
}

// FillRequest applies an execution to an order.
type FillRequest struct {
	OrderID    string
	Price      decimal.Decimal
	QuantityMW decimal.Decimal
	Caller     Caller
}

// CancelRequest cancels an order.
type CancelRequest struct {
	OrderID string
	Caller  Caller
}

// Usecase orchestrates the order lifecycle: every operation runs as one
// atomic transaction under the (organization, profile) lock, so the
// read-ledger, validate, write sequence can never interleave with another
// writer of the same scope.
type Usecase struct {
	store   repository.Store
	events  notify.Sink
	metrics *obs.Metrics
	now     func() time.Time
}

// NewUsecase creates the lifecycle manager.
func NewUsecase(store repository.Store, events notify.Sink, metrics *obs.Metrics) *Usecase {
	return &Usecase{
		store:   store,
		events:  events,
		metrics: metrics,
		now:     time.Now,
	}
}

// Submit validates a new order against the organization's exposure and
// contracted limits, persisting it as SUBMITTED on success.
func (use *Usecase) Submit(ctx context.Context, req SubmitRequest) (model.Order, error) {
	if err := req.validate(); err != nil {
		return model.Order{}, err
	}

	period, err := product.Parse(req.InstrumentSymbol)
	if err != nil {
		return model.Order{}, use.rejectSubmit(req, &exception.RuleViolation{
			Kind: exception.RuleInvalidProductPeriod,
		})
	}

	now := use.now()
	var out model.Order
	err = use.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		key := lock.KeyFor(req.Caller.OrganizationID, period.Profile)
		if err := use.acquire(ctx, tx, key); err != nil {
			return err
		}

		if prod, err := tx.Products().BySymbol(ctx, req.InstrumentSymbol); err == nil {
			if !prod.IsActive {
				return &exception.RuleViolation{Kind: exception.RuleProductNotPermitted}
			}
		} else if !stderrors.Is(err, exception.ErrProductNotFound) {
			return err
		}

		contracts, err := tx.Contracts().ActiveByOrganization(ctx, req.Caller.OrganizationID, now)
		if err != nil {
			return err
		}
		if len(contracts) == 0 {
			return &exception.RuleViolation{Kind: exception.RuleNoActiveContract}
		}

		coverUntil := now
		if req.ValidUntil != nil {
			coverUntil = *req.ValidUntil
		}

		limits := make(model.YearlyLimits)
		permitted := false
		for _, contract := range contracts {
			for year, limit := range contract.YearlyLimits {
				limits[year] = limits.LimitFor(year).Add(limit)
			}
			if contract.PermitsProduct(req.InstrumentSymbol) && contract.Covers(coverUntil) {
				permitted = true
			}
		}
		if !permitted {
			return &exception.RuleViolation{Kind: exception.RuleProductNotPermitted}
		}

		quantity, err := resolveQuantity(req, period, limits)
		if err != nil {
			return err
		}

		live, err := tx.Orders().LiveByOrganization(ctx, req.Caller.OrganizationID)
		if err != nil {
			return err
		}
		led := ledger.Build(ledger.FilterProfile(ledger.Snapshots(live), period.Profile))

		decision := risk.Validate(led, risk.Candidate{
			Period:     period,
			Side:       req.Side,
			QuantityMW: quantity,
		}, limits)
		if !decision.Allowed() {
			return decision.Violation()
		}

		order := model.Order{
			ID:               uuid.NewString(),
			OrganizationID:   req.Caller.OrganizationID,
			UserID:           req.Caller.UserID,
			ProductSymbol:    req.InstrumentSymbol,
			Side:             req.Side,
			QuantityMW:       quantity,
			FilledMW:         decimal.Zero,
			AverageFillPrice: decimal.Zero,
			LimitPrice:       req.LimitPrice,
			Status:           enum.OrderStatusSubmitted,
			ValidUntil:       req.ValidUntil,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Orders().Create(ctx, &order); err != nil {
			return err
		}
		if err := tx.Audits().Append(ctx, use.audit(order, actionSubmit, enum.OrderStatusDraft, order.Status, "")); err != nil {
			return err
		}

		out = order
		return nil
	})
	if err != nil {
		if _, ok := exception.AsRuleViolation(err); ok {
			return model.Order{}, use.rejectSubmit(req, err)
		}
		return model.Order{}, err
	}

	use.metrics.IncSubmitAccepted()
	use.publish(enum.EventOrderCreated, out, now)
	logs.Infof("order %s submitted: %s %s %s MW", out.ID, out.Side, out.ProductSymbol, out.QuantityMW)
	return out, nil
}

// Fill applies an execution to a submitted or partially filled order,
// recomputing the volume-weighted average fill price.
func (use *Usecase) Fill(ctx context.Context, req FillRequest) (model.Order, error) {
	if !req.Price.IsPositive() {
		return model.Order{}, exception.ErrInvalidPrice
	}
	if !req.QuantityMW.IsPositive() {
		return model.Order{}, exception.ErrInvalidQuantity
	}

	now := use.now()
	var out model.Order
	var kind enum.EventKind
	err := use.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().Get(ctx, req.OrderID)
		if err != nil {
			return err
		}

		key := lock.KeyFor(order.OrganizationID, product.ProfileOf(order.ProductSymbol))
		if err := use.acquire(ctx, tx, key); err != nil {
			return err
		}

		// Reload after taking the lock so the status check sees the
		// latest serialized state.
		order, err = tx.Orders().Get(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !order.Status.CanFill() {
			return exception.ErrOrderNotFillable
		}
		if req.QuantityMW.GreaterThan(order.RemainingMW().Add(fillTolerance)) {
			return exception.ErrFillExceedsRemaining
		}

		if err := tx.Fills().Append(ctx, &model.Fill{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			ExecutedMW: req.QuantityMW,
			Price:      req.Price,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		previous := order.Status
		newFilled := order.FilledMW.Add(req.QuantityMW)
		order.AverageFillPrice = order.FilledMW.Mul(order.AverageFillPrice).
			Add(req.QuantityMW.Mul(req.Price)).
			Div(newFilled)
		order.FilledMW = newFilled
		if order.QuantityMW.Sub(newFilled).Abs().LessThan(fillTolerance) {
			order.Status = enum.OrderStatusFilled
			kind = enum.EventOrderFilled
		} else {
			order.Status = enum.OrderStatusPartiallyFilled
			kind = enum.EventOrderPartiallyFilled
		}
		order.UpdatedAt = now

		if err := tx.Orders().Update(ctx, &order); err != nil {
			return err
		}
		reason := fmt.Sprintf("filled %s MW at %s", req.QuantityMW, req.Price)
		if err := tx.Audits().Append(ctx, use.audit(order, actionFill, previous, order.Status, reason)); err != nil {
			return err
		}

		out = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	use.metrics.IncFillApplied()
	use.publish(kind, out, now)
	logs.Infof("order %s filled %s MW at %s, status %s", out.ID, req.QuantityMW, req.Price, out.Status)
	return out, nil
}

// Cancel moves a non-terminal order to CANCELLED.
func (use *Usecase) Cancel(ctx context.Context, req CancelRequest) (model.Order, error) {
	now := use.now()
	var out model.Order
	err := use.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().Get(ctx, req.OrderID)
		if err != nil {
			return err
		}

		key := lock.KeyFor(order.OrganizationID, product.ProfileOf(order.ProductSymbol))
		if err := use.acquire(ctx, tx, key); err != nil {
			return err
		}

		order, err = tx.Orders().Get(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if req.Caller.Role != enum.RoleTrader && req.Caller.OrganizationID != order.OrganizationID {
			return exception.ErrNotOwner
		}
		if !order.Status.CanCancel() {
			return exception.ErrOrderTerminal
		}

		previous := order.Status
		order.Status = enum.OrderStatusCancelled
		order.UpdatedAt = now
		if err := tx.Orders().Update(ctx, &order); err != nil {
			return err
		}
		if err := tx.Audits().Append(ctx, use.audit(order, actionCancel, previous, order.Status, string(req.Caller.Role))); err != nil {
			return err
		}

		out = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	kind := enum.EventOrderCancelledByClient
	if req.Caller.Role == enum.RoleTrader {
		kind = enum.EventOrderCancelledByTrader
	}
	use.metrics.IncCancelApplied()
	use.publish(kind, out, now)
	logs.Infof("order %s cancelled by %s", out.ID, req.Caller.Role)
	return out, nil
}

// ExpireDue moves submitted orders whose validUntil elapsed to EXPIRED.
// Each order expires in its own locked transaction; failures are logged
// and skipped so one broken order cannot stall the sweep.
func (use *Usecase) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	var due []model.Order
	err := use.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		due, err = tx.Orders().DueForExpiry(ctx, now)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "list due orders")
	}

	expired := 0
	for _, stale := range due {
		err := use.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
			key := lock.KeyFor(stale.OrganizationID, product.ProfileOf(stale.ProductSymbol))
			if err := use.acquire(ctx, tx, key); err != nil {
				return err
			}

			order, err := tx.Orders().Get(ctx, stale.ID)
			if err != nil {
				return err
			}
			if order.Status != enum.OrderStatusSubmitted || order.ValidUntil == nil || !order.ValidUntil.Before(now) {
				return nil
			}

			previous := order.Status
			order.Status = enum.OrderStatusExpired
			order.UpdatedAt = now
			if err := tx.Orders().Update(ctx, &order); err != nil {
				return err
			}
			if err := tx.Audits().Append(ctx, use.audit(order, actionExpire, previous, order.Status, "validUntil elapsed")); err != nil {
				return err
			}

			stale = order
			return nil
		})
		if err != nil {
			logs.Errorf("expire order %s, err: %+v", stale.ID, err)
			continue
		}
		if stale.Status == enum.OrderStatusExpired {
			expired++
			use.metrics.IncOrderExpired()
			use.publish(enum.EventOrderExpired, stale, now)
		}
	}
	return expired, nil
}

func (req SubmitRequest) validate() error {
	if req.InstrumentSymbol == "" || req.Caller.OrganizationID == "" {
		return exception.ErrInvalidArgument
	}
	if !req.Side.IsAvailable() {
		return exception.ErrInvalidSide
	}
	if !req.Quantity.IsPositive() {
		return exception.ErrInvalidQuantity
	}
	if req.QuantityType != "" && !req.QuantityType.IsAvailable() {
		return exception.ErrInvalidQuantityType
	}
	return nil
}

// resolveQuantity converts percent quantities into MW against the stacked
// limit of the first delivery year.
func resolveQuantity(req SubmitRequest, period product.Period, limits model.YearlyLimits) (decimal.Decimal, error) {
	if req.QuantityType != enum.QuantityTypePercent {
		return req.Quantity, nil
	}
	quantity := limits.LimitFor(period.Year).
		Mul(req.Quantity).
		Div(decimal.NewFromInt(percentBase))
	if !quantity.IsPositive() {
		return decimal.Zero, exception.ErrInvalidQuantity
	}
	return quantity, nil
}

func (use *Usecase) acquire(ctx context.Context, tx repository.Tx, key lock.Key) error {
	if err := tx.Locker().Acquire(ctx, key); err != nil {
		if stderrors.Is(err, exception.ErrLockBusy) {
			use.metrics.IncLockTimeout()
		}
		return err
	}
	return nil
}

func (use *Usecase) rejectSubmit(req SubmitRequest, err error) error {
	use.metrics.IncSubmitRejected()
	use.publish(enum.EventOrderRejected, model.Order{
		OrganizationID: req.Caller.OrganizationID,
		UserID:         req.Caller.UserID,
		ProductSymbol:  req.InstrumentSymbol,
		Side:           req.Side,
		QuantityMW:     req.Quantity,
		Status:         enum.OrderStatusRejected,
	}, use.now())
	logs.Infof("submit rejected for org %s: %v", req.Caller.OrganizationID, err)
	return err
}

func (use *Usecase) publish(kind enum.EventKind, order model.Order, at time.Time) {
	if use.events == nil {
		return
	}
	use.events.Publish(notify.Event{Kind: kind, Order: order, At: at})
}

func (use *Usecase) audit(order model.Order, action string, from, to enum.OrderStatus, reason string) *model.AuditRecord {
	return &model.AuditRecord{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		OrganizationID: order.OrganizationID,
		UserID:         order.UserID,
		Action:         action,
		FromStatus:     from,
		ToStatus:       to,
		Reason:         reason,
		CreatedAt:      use.now(),
	}
}
