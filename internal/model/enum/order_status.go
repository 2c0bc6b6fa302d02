package enum

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDraft           OrderStatus = "DRAFT"
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusNeedsApproval   OrderStatus = "NEEDS_APPROVAL"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusApproved        OrderStatus = "APPROVED"
	OrderStatusInExecution     OrderStatus = "IN_EXECUTION"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether the status is final. Terminal orders never
// re-enter exposure aggregation.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired, OrderStatusFilled:
		return true
	default:
		return false
	}
}

// IsConfirmedFull reports whether the whole quantity counts as confirmed
// exposure.
func (s OrderStatus) IsConfirmedFull() bool {
	switch s {
	case OrderStatusFilled, OrderStatusApproved, OrderStatusInExecution:
		return true
	default:
		return false
	}
}

// IsPendingFull reports whether the whole quantity counts as pending
// exposure.
func (s OrderStatus) IsPendingFull() bool {
	switch s {
	case OrderStatusSubmitted, OrderStatusNeedsApproval, OrderStatusPending, OrderStatusDraft:
		return true
	default:
		return false
	}
}

// IsExcluded reports whether the order is ignored by exposure aggregation.
func (s OrderStatus) IsExcluded() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// CanFill reports whether an execution may be applied in this state.
func (s OrderStatus) CanFill() bool {
	return s == OrderStatusSubmitted || s == OrderStatusPartiallyFilled
}

// CanCancel reports whether a cancellation may be applied in this state.
func (s OrderStatus) CanCancel() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return false
	default:
		return true
	}
}
