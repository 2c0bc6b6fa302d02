package ledger

import (
	"github.com/shopspring/decimal"

	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/internal/product"
)

// Entry is the aggregate exposure of one delivery month.
//
// ConfirmedNet is a signed net of buys and sells across confirmed
// quantities. PendingBuy and PendingSell are unsigned.
type Entry struct {
	ConfirmedNet decimal.Decimal
	PendingBuy   decimal.Decimal
	PendingSell  decimal.Decimal
}

// Ledger maps "YYYY-MM" delivery months to exposure entries. It is
// ephemeral: rebuilt from live orders on every validation.
type Ledger map[string]Entry

// Entry returns the month entry, zeroed when the month is untouched.
func (l Ledger) Entry(month string) Entry {
	return l[month]
}

// OrderSnapshot is the slice of an order the builder aggregates.
type OrderSnapshot struct {
	ProductSymbol string
	QuantityMW    decimal.Decimal
	FilledMW      decimal.Decimal
	Side          enum.Side
	Status        enum.OrderStatus
}

// SnapshotOf extracts the builder's view of an order.
func SnapshotOf(o model.Order) OrderSnapshot {
	return OrderSnapshot{
		ProductSymbol: o.ProductSymbol,
		QuantityMW:    o.QuantityMW,
		FilledMW:      o.FilledMW,
		Side:          o.Side,
		Status:        o.Status,
	}
}

// Snapshots converts a batch of orders.
func Snapshots(orders []model.Order) []OrderSnapshot {
	out := make([]OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		out = append(out, SnapshotOf(o))
	}
	return out
}

// FilterProfile keeps only snapshots whose product belongs to the profile.
func FilterProfile(snapshots []OrderSnapshot, profile enum.Profile) []OrderSnapshot {
	out := make([]OrderSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if product.ProfileOf(s.ProductSymbol) == profile {
			out = append(out, s)
		}
	}
	return out
}

// Build aggregates order snapshots into per-month exposure.
//
// Partially filled orders split into a confirmed filled part and a pending
// remainder. Confirmed-full statuses count the whole quantity as confirmed
// net; pending-full statuses count it as pending by side. Terminal orders
// and orders with unresolvable symbols are skipped.
func Build(snapshots []OrderSnapshot) Ledger {
	led := make(Ledger)
	for _, s := range snapshots {
		if s.Status.IsExcluded() {
			continue
		}

		period, err := product.Parse(s.ProductSymbol)
		if err != nil {
			continue
		}

		sign := decimal.NewFromInt(s.Side.Sign())
		for _, month := range period.Months() {
			entry := led[month]
			switch {
			case s.Status == enum.OrderStatusPartiallyFilled:
				entry.ConfirmedNet = entry.ConfirmedNet.Add(s.FilledMW.Mul(sign))
				remaining := s.QuantityMW.Sub(s.FilledMW)
				if s.Side == enum.SideSell {
					entry.PendingSell = entry.PendingSell.Add(remaining)
				} else {
					entry.PendingBuy = entry.PendingBuy.Add(remaining)
				}
			case s.Status.IsConfirmedFull():
				entry.ConfirmedNet = entry.ConfirmedNet.Add(s.QuantityMW.Mul(sign))
			case s.Status.IsPendingFull():
				if s.Side == enum.SideSell {
					entry.PendingSell = entry.PendingSell.Add(s.QuantityMW)
				} else {
					entry.PendingBuy = entry.PendingBuy.Add(s.QuantityMW)
				}
			default:
				continue
			}
			led[month] = entry
		}
	}
	return led
}
