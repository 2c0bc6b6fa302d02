package enum

// Profile is the delivery shape of a product: flat 24h base load or
// 07:00-22:00 peak load.
type Profile string

const (
	ProfileBase Profile = "BASE"
	ProfilePeak Profile = "PEAK"
)

func (p Profile) IsAvailable() bool {
	return p == ProfileBase || p == ProfilePeak
}
