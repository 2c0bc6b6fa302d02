package exception

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleKind identifies a business-rule violation.
type RuleKind string

const (
	RuleLimitExceeded        RuleKind = "LIMIT_EXCEEDED"
	RuleInsufficientCoverage RuleKind = "INSUFFICIENT_COVERAGE"
	RuleInvalidProductPeriod RuleKind = "INVALID_PRODUCT_PERIOD"
	RuleNoActiveContract     RuleKind = "NO_ACTIVE_CONTRACT"
	RuleProductNotPermitted  RuleKind = "PRODUCT_NOT_PERMITTED"
)

// RuleViolation is a non-retryable business-rule rejection with the
// structured detail the caller surfaces to the user.
type RuleViolation struct {
	Kind      RuleKind        `json:"kind"`
	Month     string          `json:"month,omitempty"`
	Limit     decimal.Decimal `json:"limit,omitempty"`
	Used      decimal.Decimal `json:"used,omitempty"`
	Available decimal.Decimal `json:"available,omitempty"`
	Requested decimal.Decimal `json:"requested,omitempty"`
}

func (v *RuleViolation) Error() string {
	switch v.Kind {
	case RuleLimitExceeded:
		return fmt.Sprintf("rule: yearly limit exceeded in %s, limit %s MW, used %s MW",
			v.Month, v.Limit, v.Used)
	case RuleInsufficientCoverage:
		return fmt.Sprintf("rule: insufficient coverage in %s, available %s MW, requested %s MW",
			v.Month, v.Available, v.Requested)
	case RuleInvalidProductPeriod:
		return "rule: product symbol does not resolve to a delivery period"
	case RuleNoActiveContract:
		return "rule: no active contract covers the order"
	case RuleProductNotPermitted:
		return "rule: product is not permitted by any active contract"
	default:
		return fmt.Sprintf("rule: violation %s", v.Kind)
	}
}

// AsRuleViolation unwraps err into a RuleViolation when possible.
func AsRuleViolation(err error) (*RuleViolation, bool) {
	var v *RuleViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
