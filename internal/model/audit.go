package model

import (
	"time"

	"powertrade/internal/model/enum"
)

// AuditRecord captures one lifecycle state change for compliance review.
type AuditRecord struct {
	ID             string           `gorm:"primaryKey" json:"id"`
	OrderID        string           `gorm:"index" json:"orderId"`
	OrganizationID string           `json:"organizationId"`
	UserID         string           `json:"userId"`
	Action         string           `json:"action"`
	FromStatus     enum.OrderStatus `json:"fromStatus"`
	ToStatus       enum.OrderStatus `json:"toStatus"`
	Reason         string           `json:"reason"`
	CreatedAt      time.Time        `json:"createdAt"`
}
