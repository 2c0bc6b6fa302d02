package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// YearlyLimits maps a delivery year to the contracted capacity in MW.
type YearlyLimits map[int]decimal.Decimal

// Contract grants an organization the right to trade a set of products
// against per-year capacity limits. Limits of multiple active contracts
// stack.
type Contract struct {
	ID              string       `gorm:"primaryKey" json:"id"`
	OrganizationID  string       `gorm:"index" json:"organizationId"`
	AllowedProducts []string     `gorm:"serializer:json" json:"allowedProducts"`
	YearlyLimits    YearlyLimits `gorm:"serializer:json" json:"yearlyLimits"`
	ValidFrom       time.Time    `json:"validFrom"`
	ValidTo         time.Time    `json:"validTo"`
	IsActive        bool         `json:"isActive"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// PermitsProduct reports whether the contract allows trading the symbol.
func (c Contract) PermitsProduct(symbol string) bool {
	for _, allowed := range c.AllowedProducts {
		if allowed == symbol {
			return true
		}
	}
	return false
}

// Covers reports whether t falls inside the contract validity window.
func (c Contract) Covers(t time.Time) bool {
	return !t.Before(c.ValidFrom) && !t.After(c.ValidTo)
}

// LimitFor returns the contracted capacity for a delivery year, zero when
// the year is not configured.
func (l YearlyLimits) LimitFor(year int) decimal.Decimal {
	if limit, ok := l[year]; ok {
		return limit
	}
	return decimal.Zero
}
