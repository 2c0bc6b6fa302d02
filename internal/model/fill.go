package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is a single execution against an order. Fills are append-only; the
// sum of executed quantities never exceeds the order quantity.
type Fill struct {
	ID         string          `gorm:"primaryKey" json:"id"`
	OrderID    string          `gorm:"index" json:"orderId"`
	ExecutedMW decimal.Decimal `gorm:"type:numeric(16,4)" json:"executedMw"`
	Price      decimal.Decimal `gorm:"type:numeric(16,4)" json:"price"`
	CreatedAt  time.Time       `json:"createdAt"`
}
