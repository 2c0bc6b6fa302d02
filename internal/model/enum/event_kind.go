package enum

// EventKind labels an order lifecycle event handed to the notification
// dispatcher.
type EventKind string

const (
	EventOrderCreated           EventKind = "ORDER_CREATED"
	EventOrderFilled            EventKind = "ORDER_FILLED"
	EventOrderPartiallyFilled   EventKind = "ORDER_PARTIALLY_FILLED"
	EventOrderCancelledByClient EventKind = "ORDER_CANCELLED_BY_CLIENT"
	EventOrderCancelledByTrader EventKind = "ORDER_CANCELLED_BY_TRADER"
	EventOrderRejected          EventKind = "ORDER_REJECTED"
	EventOrderExpired           EventKind = "ORDER_EXPIRED"
)
