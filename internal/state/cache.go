package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TTL CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// TTLStudents is the freshness window for the student roster.
	TTLStudents = 5 * time.Minute

	// TTLProfiles is the freshness window for individual student profiles.
	TTLProfiles = 5 * time.Minute

	// TTLMetrics is the freshness window for dashboard metric cards.
	TTLMetrics = 5 * time.Minute

	// TTLMoods is the freshness window for mood check-ins.
	TTLMoods = 5 * time.Minute

	// TTLActivities is the freshness window for counseling activities.
	TTLActivities = 5 * time.Minute

	// TTLNotifications is the freshness window for notifications; shorter than
	// the rest because new alerts matter within a minute.
	TTLNotifications = 1 * time.Minute
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED STORE
// ══════════════════════════════════════════════════════════════════════════════

// FetchFunc loads the full resource value from the backend.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is a point-in-time read of a CachedStore, safe to hand to the UI.
type Snapshot[T any] struct {
	Value       T
	HasValue    bool
	Loading     bool
	Err         error
	LastFetched time.Time
}

// CachedStore is a single-value cache with TTL-based staleness. Fetch within
// the freshness window is a no-op that touches nothing; a failed refresh
// records the error but keeps the previously cached value available, so the
// UI degrades to stale data instead of a blank screen.
type CachedStore[T any] struct {
	name    string
	ttl     time.Duration
	fetchFn FetchFunc[T]
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	value       T
	hasValue    bool
	loading     bool
	err         error
	lastFetched time.Time
}

// NewCachedStore creates a CachedStore for the named resource.
func NewCachedStore[T any](name string, ttl time.Duration, fetchFn FetchFunc[T], logger *slog.Logger) *CachedStore[T] {
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedStore[T]{
		name:    name,
		ttl:     ttl,
		fetchFn: fetchFn,
		logger:  logger.With("store", name),
		now:     time.Now,
	}
}

// Fetch loads the resource from the backend unless a fresh value is already
// cached. With force=true the TTL check is skipped. When a load is already in
// flight the call is a pure no-op: the in-flight load's outcome stands for
// both callers.
func (s *CachedStore[T]) Fetch(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	if !force && s.hasValue && !s.staleLocked() {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	value, err := s.fetchFn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		// Keep the previous value and stamp; only the error changes.
		s.err = err
		s.logger.Warn("refresh failed, serving cached value",
			"has_cached", s.hasValue,
			"error", err,
		)
		return shared.NewDomainError("state", "Fetch", err, s.name+" refresh failed")
	}

	s.value = value
	s.hasValue = true
	s.err = nil
	s.lastFetched = s.now()

	s.logger.Debug("store refreshed", "forced", force)
	return nil
}

// Snapshot returns the current cached state.
func (s *CachedStore[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot[T]{
		Value:       s.value,
		HasValue:    s.hasValue,
		Loading:     s.loading,
		Err:         s.err,
		LastFetched: s.lastFetched,
	}
}

// Stale reports whether the cached value is missing or older than the TTL.
func (s *CachedStore[T]) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleLocked()
}

func (s *CachedStore[T]) staleLocked() bool {
	if !s.hasValue {
		return true
	}
	return s.now().Sub(s.lastFetched) > s.ttl
}

// Mutate applies a local transformation to the cached value, leaving the
// fetch stamp untouched. Returns false without calling fn when nothing is
// cached. Used for server-confirmed point updates (mark-read, roster edits)
// that should not wait for the next full refresh.
func (s *CachedStore[T]) Mutate(fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasValue {
		return false
	}
	s.value = fn(s.value)
	return true
}

// Restore installs a value rehydrated from durable storage, stamped with its
// original fetch time so staleness is re-evaluated against the clock, not
// reset by the restart.
func (s *CachedStore[T]) Restore(value T, lastFetched time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	s.hasValue = true
	s.err = nil
	s.lastFetched = lastFetched
}

// Reset drops the cached value, error, and stamp.
func (s *CachedStore[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.value = zero
	s.hasValue = false
	s.loading = false
	s.err = nil
	s.lastFetched = time.Time{}
}

// setNow overrides the clock for tests.
func (s *CachedStore[T]) setNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
