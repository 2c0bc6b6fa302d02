package lock

import (
	"context"

	"powertrade/internal/model/enum"
)

// Key scopes mutual exclusion to one (organization, profile) pair.
// Different organizations, and different profiles of the same
// organization, never contend.
type Key struct {
	Org     int32
	Profile int32
}

// KeyFor derives the lock key from an organization and profile.
func KeyFor(organizationID string, profile enum.Profile) Key {
	return Key{
		Org:     hash32(organizationID),
		Profile: hash32(string(profile)),
	}
}

// Locker is a named mutex scoped to one transaction. Implementations
// release all held keys when the transaction ends, commit or rollback.
type Locker interface {
	// Acquire blocks until the key is held or the bounded wait elapses,
	// in which case it returns exception.ErrLockBusy.
	Acquire(ctx context.Context, key Key) error
}

// hash32 is DJB2 over the raw bytes. Stable across processes so every
// engine instance maps the same scope to the same advisory lock.
func hash32(s string) int32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return int32(h)
}
