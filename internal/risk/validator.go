package risk

import (
	"github.com/shopspring/decimal"

	"powertrade/internal/ledger"
	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/internal/product"
	"powertrade/pkg/exception"
)

// Action is the validator verdict.
type Action uint8

const (
	ActionAllow Action = iota
	ActionDeny
)

// Reason identifies why a candidate was denied.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonInvalidProductPeriod
	ReasonLimitExceeded
	ReasonInsufficientCoverage
)

// coverageTolerance absorbs accumulated rounding on sell coverage checks.
var coverageTolerance = decimal.NewFromFloat(0.001)

// Candidate is the order under validation.
type Candidate struct {
	Period     product.Period
	Side       enum.Side
	QuantityMW decimal.Decimal
}

// Decision is the validation outcome with the detail of the first failing
// month.
type Decision struct {
	Action    Action
	Reason    Reason
	Month     string
	Limit     decimal.Decimal
	Used      decimal.Decimal
	Available decimal.Decimal
	Requested decimal.Decimal
}

// Allowed reports whether the candidate passed every month.
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// Violation converts a deny decision into the structured business-rule
// error surfaced to callers. Returns nil for allow decisions.
func (d Decision) Violation() error {
	switch d.Reason {
	case ReasonInvalidProductPeriod:
		return &exception.RuleViolation{Kind: exception.RuleInvalidProductPeriod}
	case ReasonLimitExceeded:
		return &exception.RuleViolation{
			Kind:  exception.RuleLimitExceeded,
			Month: d.Month,
			Limit: d.Limit,
			Used:  d.Used,
		}
	case ReasonInsufficientCoverage:
		return &exception.RuleViolation{
			Kind:      exception.RuleInsufficientCoverage,
			Month:     d.Month,
			Available: d.Available,
			Requested: d.Requested,
		}
	default:
		return nil
	}
}

// Validate checks a candidate order against the exposure ledger and the
// organization's yearly limits.
//
// Buys consume capacity as soon as they are pending, so two concurrent
// buyers cannot double-book the same headroom. Pending sells do not
// release capacity, and a new sell must be covered by confirmed net minus
// sells already pending.
func Validate(led ledger.Ledger, candidate Candidate, limits model.YearlyLimits) Decision {
	months := candidate.Period.Months()
	if len(months) == 0 {
		return Decision{Action: ActionDeny, Reason: ReasonInvalidProductPeriod}
	}

	for _, month := range months {
		limit := limits.LimitFor(product.YearOfMonth(month))
		entry := led.Entry(month)

		switch candidate.Side {
		case enum.SideSell:
			available := entry.ConfirmedNet.Sub(entry.PendingSell)
			if available.Sub(candidate.QuantityMW).LessThan(coverageTolerance.Neg()) {
				return Decision{
					Action:    ActionDeny,
					Reason:    ReasonInsufficientCoverage,
					Month:     month,
					Available: available,
					Requested: candidate.QuantityMW,
				}
			}
		default:
			used := entry.ConfirmedNet.Add(entry.PendingBuy).Add(candidate.QuantityMW)
			if used.GreaterThan(limit) {
				return Decision{
					Action: ActionDeny,
					Reason: ReasonLimitExceeded,
					Month:  month,
					Limit:  limit,
					Used:   used,
				}
			}
		}
	}

	return Decision{Action: ActionAllow}
}
