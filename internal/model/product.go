package model

import (
	"time"

	"powertrade/internal/model/enum"
)

// Product is a catalog entry for a tradable forward product.
type Product struct {
	Symbol       string       `gorm:"primaryKey" json:"symbol"`
	Name         string       `json:"name"`
	Profile      enum.Profile `json:"profile"`
	DeliveryFrom time.Time    `json:"deliveryFrom"`
	DeliveryTo   time.Time    `json:"deliveryTo"`
	IsActive     bool         `json:"isActive"`
}
