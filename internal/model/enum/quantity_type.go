package enum

// QuantityType selects how a submitted quantity is interpreted.
type QuantityType string

const (
	QuantityTypeMW      QuantityType = "MW"
	QuantityTypePercent QuantityType = "PERCENT"
)

func (q QuantityType) IsAvailable() bool {
	return q == QuantityTypeMW || q == QuantityTypePercent
}
