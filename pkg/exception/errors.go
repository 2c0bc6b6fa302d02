package exception

import "errors"

// Validation errors: malformed input rejected before any state is touched.
var (
	ErrInvalidArgument      = errors.New("order: invalid argument")
	ErrInvalidSide          = errors.New("order: invalid side")
	ErrInvalidQuantity      = errors.New("order: quantity must be positive")
	ErrInvalidPrice         = errors.New("order: price must be positive")
	ErrInvalidQuantityType  = errors.New("order: unsupported quantity type")
	ErrFillExceedsRemaining = errors.New("fill: quantity exceeds remaining order quantity")
)

// Not-found errors.
var (
	ErrOrderNotFound   = errors.New("order: not found")
	ErrProductNotFound = errors.New("product: not found")
)

// Conflict errors: caller-retryable or terminal-state transitions.
var (
	ErrLockBusy         = errors.New("lock: busy")
	ErrOrderTerminal    = errors.New("order: already in terminal state")
	ErrOrderNotFillable = errors.New("order: state does not accept fills")
	ErrNotOwner         = errors.New("order: caller organization does not own order")
)

// Infrastructure errors.
var (
	ErrStoreUnavailable = errors.New("store: backend unavailable")
)

// IsRetryable reports whether the caller may retry the operation with
// backoff. Business-rule violations are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockBusy) || errors.Is(err, ErrStoreUnavailable)
}
