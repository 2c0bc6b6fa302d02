package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powertrade/internal/model/enum"
	"powertrade/pkg/exception"
)

func TestKeyForIsStableAndScoped(t *testing.T) {
	key := KeyFor("org-1", enum.ProfileBase)
	assert.Equal(t, key, KeyFor("org-1", enum.ProfileBase))

	assert.NotEqual(t, key, KeyFor("org-2", enum.ProfileBase))
	assert.NotEqual(t, key, KeyFor("org-1", enum.ProfilePeak))
}

func TestTableSerializesSameKey(t *testing.T) {
	table := NewTable(time.Second)
	key := KeyFor("org-1", enum.ProfileBase)

	first := table.Begin()
	require.NoError(t, first.Acquire(context.Background(), key))

	acquired := make(chan struct{})
	go func() {
		second := table.Begin()
		require.NoError(t, second.Acquire(context.Background(), key))
		close(acquired)
		second.ReleaseAll()
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	first.ReleaseAll()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not handed over after release")
	}
}

func TestTableBoundedWaitReturnsLockBusy(t *testing.T) {
	table := NewTable(30 * time.Millisecond)
	key := KeyFor("org-1", enum.ProfileBase)

	holder := table.Begin()
	require.NoError(t, holder.Acquire(context.Background(), key))
	defer holder.ReleaseAll()

	waiter := table.Begin()
	err := waiter.Acquire(context.Background(), key)
	assert.ErrorIs(t, err, exception.ErrLockBusy)
	assert.True(t, exception.IsRetryable(err))
}

func TestTableDifferentKeysDoNotContend(t *testing.T) {
	table := NewTable(100 * time.Millisecond)

	base := table.Begin()
	require.NoError(t, base.Acquire(context.Background(), KeyFor("org-1", enum.ProfileBase)))
	defer base.ReleaseAll()

	peak := table.Begin()
	require.NoError(t, peak.Acquire(context.Background(), KeyFor("org-1", enum.ProfilePeak)))
	peak.ReleaseAll()

	other := table.Begin()
	require.NoError(t, other.Acquire(context.Background(), KeyFor("org-2", enum.ProfileBase)))
	other.ReleaseAll()
}

func TestTxLockerIsReentrant(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	key := KeyFor("org-1", enum.ProfileBase)

	tx := table.Begin()
	require.NoError(t, tx.Acquire(context.Background(), key))
	require.NoError(t, tx.Acquire(context.Background(), key))
	tx.ReleaseAll()

	next := table.Begin()
	require.NoError(t, next.Acquire(context.Background(), key))
	next.ReleaseAll()
}

func TestTableAcquireHonorsContext(t *testing.T) {
	table := NewTable(10 * time.Second)
	key := KeyFor("org-1", enum.ProfileBase)

	holder := table.Begin()
	require.NoError(t, holder.Acquire(context.Background(), key))
	defer holder.ReleaseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	waiter := table.Begin()
	err := waiter.Acquire(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTableHandoverUnderContention(t *testing.T) {
	table := NewTable(5 * time.Second)
	key := KeyFor("org-1", enum.ProfileBase)

	var held int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := table.Begin()
			require.NoError(t, tx.Acquire(context.Background(), key))
			held++
			tx.ReleaseAll()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 8, held)
}
