package obs

import "sync/atomic"

// Metrics collects lightweight engine counters. All methods are nil-safe
// so wiring metrics stays optional.
type Metrics struct {
	submitsAccepted uint64
	submitsRejected uint64
	fillsApplied    uint64
	cancelsApplied  uint64
	ordersExpired   uint64
	lockTimeouts    uint64
	eventDrops      uint64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	SubmitsAccepted uint64
	SubmitsRejected uint64
	FillsApplied    uint64
	CancelsApplied  uint64
	OrdersExpired   uint64
	LockTimeouts    uint64
	EventDrops      uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncSubmitAccepted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submitsAccepted, 1)
}

func (m *Metrics) IncSubmitRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submitsRejected, 1)
}

func (m *Metrics) IncFillApplied() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fillsApplied, 1)
}

func (m *Metrics) IncCancelApplied() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancelsApplied, 1)
}

func (m *Metrics) IncOrderExpired() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersExpired, 1)
}

func (m *Metrics) IncLockTimeout() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.lockTimeouts, 1)
}

func (m *Metrics) IncEventDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.eventDrops, 1)
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		SubmitsAccepted: atomic.LoadUint64(&m.submitsAccepted),
		SubmitsRejected: atomic.LoadUint64(&m.submitsRejected),
		FillsApplied:    atomic.LoadUint64(&m.fillsApplied),
		CancelsApplied:  atomic.LoadUint64(&m.cancelsApplied),
		OrdersExpired:   atomic.LoadUint64(&m.ordersExpired),
		LockTimeouts:    atomic.LoadUint64(&m.lockTimeouts),
		EventDrops:      atomic.LoadUint64(&m.eventDrops),
	}
}
