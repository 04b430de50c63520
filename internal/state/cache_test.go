package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

func TestCachedStore_FetchCachesValue(t *testing.T) {
	calls := 0
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}, nil)

	err := store.Fetch(context.Background(), false)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	snap := store.Snapshot()
	assert.True(t, snap.HasValue)
	assert.Equal(t, []string{"a", "b"}, snap.Value)
	assert.False(t, snap.LastFetched.IsZero())
}

func TestCachedStore_FreshFetchIsNoOp(t *testing.T) {
	calls := 0
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, nil)

	assert.NoError(t, store.Fetch(context.Background(), false))
	assert.NoError(t, store.Fetch(context.Background(), false))
	assert.NoError(t, store.Fetch(context.Background(), false))

	assert.Equal(t, 1, calls, "fresh cache must not hit the backend again")
	snap := store.Snapshot()
	assert.Equal(t, 1, snap.Value)
}

func TestCachedStore_ForceSkipsTTL(t *testing.T) {
	calls := 0
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, nil)

	assert.NoError(t, store.Fetch(context.Background(), false))
	assert.NoError(t, store.Fetch(context.Background(), true))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, store.Snapshot().Value)
}

func TestCachedStore_ExpiredTTLRefetches(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	store := NewCachedStore("test", 5*time.Minute, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, nil)
	store.setNow(func() time.Time { return now })

	assert.NoError(t, store.Fetch(context.Background(), false))
	assert.False(t, store.Stale())

	// Just inside the window: still fresh.
	now = now.Add(5 * time.Minute)
	assert.False(t, store.Stale())
	assert.NoError(t, store.Fetch(context.Background(), false))
	assert.Equal(t, 1, calls)

	// Past the window: stale, next fetch goes out.
	now = now.Add(time.Second)
	assert.True(t, store.Stale())
	assert.NoError(t, store.Fetch(context.Background(), false))
	assert.Equal(t, 2, calls)
}

func TestCachedStore_FailedRefreshKeepsStaleValue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetchErr := error(nil)
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) ([]string, error) {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return []string{"cached"}, nil
	}, nil)
	store.setNow(func() time.Time { return now })

	assert.NoError(t, store.Fetch(context.Background(), false))
	stamp := store.Snapshot().LastFetched

	now = now.Add(2 * time.Minute)
	fetchErr = shared.ErrNetwork

	err := store.Fetch(context.Background(), false)
	assert.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNetwork)

	snap := store.Snapshot()
	assert.True(t, snap.HasValue, "stale value must survive a failed refresh")
	assert.Equal(t, []string{"cached"}, snap.Value)
	assert.Equal(t, stamp, snap.LastFetched, "failed refresh must not touch the stamp")
	assert.Error(t, snap.Err)
}

func TestCachedStore_SuccessfulRefreshClearsError(t *testing.T) {
	fetchErr := error(shared.ErrTimeout)
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) (int, error) {
		if fetchErr != nil {
			return 0, fetchErr
		}
		return 42, nil
	}, nil)

	assert.Error(t, store.Fetch(context.Background(), false))
	assert.Error(t, store.Snapshot().Err)

	fetchErr = nil
	assert.NoError(t, store.Fetch(context.Background(), true))

	snap := store.Snapshot()
	assert.NoError(t, snap.Err)
	assert.Equal(t, 42, snap.Value)
}

func TestCachedStore_ConcurrentFetchDeduplicated(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Fetch(context.Background(), false))
		}()
	}

	// Let the goroutines pile up against the in-flight load, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent fetches must share one round-trip")
	assert.Equal(t, 7, store.Snapshot().Value)
}

func TestCachedStore_MutateWithoutValueIsNoOp(t *testing.T) {
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) ([]int, error) {
		return []int{1}, nil
	}, nil)

	called := false
	ok := store.Mutate(func(v []int) []int {
		called = true
		return v
	})

	assert.False(t, ok)
	assert.False(t, called)
}

func TestCachedStore_MutateKeepsStamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) ([]int, error) {
		return []int{1, 2}, nil
	}, nil)
	store.setNow(func() time.Time { return now })

	assert.NoError(t, store.Fetch(context.Background(), false))
	stamp := store.Snapshot().LastFetched

	now = now.Add(30 * time.Second)
	ok := store.Mutate(func(v []int) []int { return append(v, 3) })

	assert.True(t, ok)
	snap := store.Snapshot()
	assert.Equal(t, []int{1, 2, 3}, snap.Value)
	assert.Equal(t, stamp, snap.LastFetched, "local mutation must not look like a refresh")
}

func TestCachedStore_RestoreReevaluatesStaleness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewCachedStore("test", 5*time.Minute, func(ctx context.Context) (int, error) {
		return 0, errors.New("should not be called")
	}, nil)
	store.setNow(func() time.Time { return now })

	// A value fetched two minutes before the restart is still fresh.
	store.Restore(9, now.Add(-2*time.Minute))
	assert.False(t, store.Stale())

	// One fetched an hour ago is stale, not magically refreshed.
	store.Restore(9, now.Add(-time.Hour))
	assert.True(t, store.Stale())
}

func TestCachedStore_Reset(t *testing.T) {
	store := NewCachedStore("test", time.Minute, func(ctx context.Context) (int, error) {
		return 5, nil
	}, nil)

	assert.NoError(t, store.Fetch(context.Background(), false))
	store.Reset()

	snap := store.Snapshot()
	assert.False(t, snap.HasValue)
	assert.Zero(t, snap.Value)
	assert.True(t, snap.LastFetched.IsZero())
	assert.True(t, store.Stale())
}
