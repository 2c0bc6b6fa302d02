package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"powertrade/internal/model"
	"powertrade/internal/model/enum"
	"powertrade/internal/obs"
)

var (
	ErrQueueFull   = errors.New("notify: queue full")
	ErrQueueClosed = errors.New("notify: queue closed")
)

// Event is one order lifecycle notification.
type Event struct {
	Kind  enum.EventKind
	Order model.Order
	At    time.Time
}

// Sink receives lifecycle events. Publishing must never block the trading
// path.
type Sink interface {
	Publish(Event)
}

// Dispatcher is a bounded, non-blocking event queue feeding downstream
// notification delivery. Events are dropped when the queue is saturated;
// order state never waits on delivery.
type Dispatcher struct {
	ch      chan Event
	closed  uint32
	metrics *obs.Metrics
}

// NewDispatcher allocates a dispatcher with the given queue capacity.
func NewDispatcher(capacity int, metrics *obs.Metrics) *Dispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	return &Dispatcher{
		ch:      make(chan Event, capacity),
		metrics: metrics,
	}
}

// Publish enqueues the event, dropping it when the queue is full or
// closed.
func (d *Dispatcher) Publish(e Event) {
	if err := d.TryPublish(e); err != nil {
		d.metrics.IncEventDrop()
		logs.Errorf("drop lifecycle event %s for order %s, err: %+v", e.Kind, e.Order.ID, err)
	}
}

// TryPublish enqueues an event without blocking.
func (d *Dispatcher) TryPublish(e Event) error {
	if atomic.LoadUint32(&d.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case d.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the dispatcher from accepting new events.
func (d *Dispatcher) Close() {
	if atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		close(d.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (d *Dispatcher) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-d.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
