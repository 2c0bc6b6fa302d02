package lock

import (
	"context"
	"sync"
	"time"

	"powertrade/pkg/exception"
)

const defaultWait = 5 * time.Second

// Table is an in-process lock table keyed by (organization, profile).
// It backs the in-memory store; the postgres store uses advisory locks
// instead.
type Table struct {
	mu   sync.Mutex
	held map[Key]chan struct{}
	wait time.Duration
}

// NewTable creates a lock table with a bounded acquisition wait.
func NewTable(wait time.Duration) *Table {
	if wait <= 0 {
		wait = defaultWait
	}
	return &Table{
		held: make(map[Key]chan struct{}),
		wait: wait,
	}
}

// Begin returns a Locker scoped to one transaction.
func (t *Table) Begin() *TxLocker {
	return &TxLocker{table: t}
}

func (t *Table) acquire(ctx context.Context, key Key) error {
	deadline := time.NewTimer(t.wait)
	defer deadline.Stop()

	for {
		t.mu.Lock()
		released, taken := t.held[key]
		if !taken {
			t.held[key] = make(chan struct{})
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()

		select {
		case <-released:
		case <-deadline.C:
			return exception.ErrLockBusy
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Table) release(key Key) {
	t.mu.Lock()
	if released, taken := t.held[key]; taken {
		delete(t.held, key)
		close(released)
	}
	t.mu.Unlock()
}

// TxLocker holds keys for the duration of one transaction.
type TxLocker struct {
	table *Table
	keys  []Key
}

// Acquire takes the key, re-entrant within the same transaction.
func (l *TxLocker) Acquire(ctx context.Context, key Key) error {
	for _, held := range l.keys {
		if held == key {
			return nil
		}
	}
	if err := l.table.acquire(ctx, key); err != nil {
		return err
	}
	l.keys = append(l.keys, key)
	return nil
}

// ReleaseAll frees every key held by the transaction.
func (l *TxLocker) ReleaseAll() {
	for _, key := range l.keys {
		l.table.release(key)
	}
	l.keys = nil
}
