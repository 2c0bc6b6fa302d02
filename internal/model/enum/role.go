package enum

// Role classifies the caller of a lifecycle operation.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleTrader Role = "TRADER"
)

func (r Role) IsAvailable() bool {
	return r == RoleClient || r == RoleTrader
}
