package model

import (
	"time"

	"github.com/shopspring/decimal"

	"powertrade/internal/model/enum"
)

// Order is a standardized energy forward order.
//
// Invariant: 0 <= FilledMW <= QuantityMW. FilledMW and AverageFillPrice are
// mutated only by applying fills.
type Order struct {
	ID               string           `gorm:"primaryKey" json:"id"`
	OrganizationID   string           `gorm:"index" json:"organizationId"`
	UserID           string           `json:"userId"`
	ProductSymbol    string           `json:"productSymbol"`
	Side             enum.Side        `json:"side"`
	QuantityMW       decimal.Decimal  `gorm:"type:numeric(16,4)" json:"quantityMw"`
	FilledMW         decimal.Decimal  `gorm:"type:numeric(16,4)" json:"filledMw"`
	AverageFillPrice decimal.Decimal  `gorm:"type:numeric(16,4)" json:"averageFillPrice"`
	LimitPrice       decimal.Decimal  `gorm:"type:numeric(16,4)" json:"limitPrice"`
	Status           enum.OrderStatus `gorm:"index" json:"status"`
	ValidUntil       *time.Time       `json:"validUntil,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// RemainingMW is the unfilled part of the order quantity.
func (o Order) RemainingMW() decimal.Decimal {
	return o.QuantityMW.Sub(o.FilledMW)
}
