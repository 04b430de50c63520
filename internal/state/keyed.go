package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYED STORE
// ══════════════════════════════════════════════════════════════════════════════

// KeyedFetchFunc loads one entry of a keyed resource from the backend.
type KeyedFetchFunc[T any] func(ctx context.Context, key string) (T, error)

// PersistedEntry is the durable projection of one cached entry.
type PersistedEntry[T any] struct {
	Value       T         `json:"value"`
	LastFetched time.Time `json:"lastFetched"`
}

type keyedEntry[T any] struct {
	value       T
	lastFetched time.Time
}

// KeyedStore caches entries of a keyed resource with per-key staleness: each
// entry carries its own fetch stamp, so refreshing one student's profile
// never disturbs another's freshness.
//
// The store also carries the bookkeeping for optimistic mutations. While a
// mutation is in flight the entry holds the optimistic value, but the
// pre-mutation snapshot is retained and substituted into PersistableEntries,
// so an unconfirmed write can never reach durable storage.
type KeyedStore[T any] struct {
	name    string
	ttl     time.Duration
	fetchFn KeyedFetchFunc[T]
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]keyedEntry[T]
	pending map[string]keyedEntry[T]
	loading map[string]bool
	err     error
}

// NewKeyedStore creates a KeyedStore for the named resource.
func NewKeyedStore[T any](name string, ttl time.Duration, fetchFn KeyedFetchFunc[T], logger *slog.Logger) *KeyedStore[T] {
	if logger == nil {
		logger = slog.Default()
	}

	return &KeyedStore[T]{
		name:    name,
		ttl:     ttl,
		fetchFn: fetchFn,
		logger:  logger.With("store", name),
		now:     time.Now,
		entries: make(map[string]keyedEntry[T]),
		pending: make(map[string]keyedEntry[T]),
		loading: make(map[string]bool),
	}
}

// Fetch loads the entry for key unless a fresh one is already cached. With
// force=true the TTL check is skipped. A load already in flight for the same
// key makes the call a no-op.
func (s *KeyedStore[T]) Fetch(ctx context.Context, key string, force bool) error {
	s.mu.Lock()
	if s.loading[key] {
		s.mu.Unlock()
		return nil
	}
	if entry, ok := s.entries[key]; ok && !force && !s.staleLocked(entry) {
		s.mu.Unlock()
		return nil
	}
	s.loading[key] = true
	s.mu.Unlock()

	value, err := s.fetchFn(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loading, key)

	if err != nil {
		s.err = err
		s.logger.Warn("entry refresh failed", "key", key, "error", err)
		return shared.NewDomainError("state", "Fetch", err, s.name+" refresh failed")
	}

	s.entries[key] = keyedEntry[T]{value: value, lastFetched: s.now()}
	s.err = nil
	return nil
}

// Get returns the cached entry for key. During an in-flight optimistic
// mutation this is the optimistic value.
func (s *KeyedStore[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	return entry.value, ok
}

// LastFetched returns the fetch stamp for key.
func (s *KeyedStore[T]) LastFetched(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	return entry.lastFetched, ok
}

// Stale reports whether the entry for key is missing or older than the TTL.
func (s *KeyedStore[T]) Stale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return true
	}
	return s.staleLocked(entry)
}

func (s *KeyedStore[T]) staleLocked(entry keyedEntry[T]) bool {
	return s.now().Sub(entry.lastFetched) > s.ttl
}

// Err returns the last refresh or mutation error.
func (s *KeyedStore[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Restore installs an entry rehydrated from durable storage with its original
// fetch stamp.
func (s *KeyedStore[T]) Restore(key string, value T, lastFetched time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = keyedEntry[T]{value: value, lastFetched: lastFetched}
}

// Remove drops the entry for key.
func (s *KeyedStore[T]) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	delete(s.pending, key)
}

// Reset drops every entry, pending snapshot, and error.
func (s *KeyedStore[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]keyedEntry[T])
	s.pending = make(map[string]keyedEntry[T])
	s.loading = make(map[string]bool)
	s.err = nil
}

// PersistableEntries returns the durable projection of the store. Entries
// with an in-flight mutation are projected from their pre-mutation snapshot.
func (s *KeyedStore[T]) PersistableEntries() map[string]PersistedEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]PersistedEntry[T], len(s.entries))
	for key, entry := range s.entries {
		if snapshot, inFlight := s.pending[key]; inFlight {
			entry = snapshot
		}
		out[key] = PersistedEntry[T]{Value: entry.value, LastFetched: entry.lastFetched}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTIMISTIC MUTATION HOOKS
// ══════════════════════════════════════════════════════════════════════════════

// beginMutation snapshots the entry for key and marks it as having a
// mutation in flight. Fails with shared.ErrNotCached when the entry is not
// cached (the caller has nothing to roll back to) and with shared.ErrConflict
// when another mutation on the same key is still unresolved.
func (s *KeyedStore[T]) beginMutation(key string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	entry, ok := s.entries[key]
	if !ok {
		return zero, shared.NewDomainError("state", "beginMutation", shared.ErrNotCached,
			s.name+" entry not cached, load it before editing")
	}
	if _, inFlight := s.pending[key]; inFlight {
		return zero, shared.NewDomainError("state", "beginMutation", shared.ErrConflict,
			"another edit is still in flight for this entry")
	}

	s.pending[key] = entry
	return entry.value, nil
}

// applyOptimistic installs the optimistic value for key, keeping the fetch
// stamp of the snapshot.
func (s *KeyedStore[T]) applyOptimistic(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[key]
	entry.value = value
	s.entries[key] = entry
}

// confirmMutation replaces the entry with the server-confirmed value and
// releases the snapshot.
func (s *KeyedStore[T]) confirmMutation(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = keyedEntry[T]{value: value, lastFetched: s.now()}
	delete(s.pending, key)
	s.err = nil
}

// rollbackMutation restores the exact pre-mutation snapshot, fetch stamp
// included, and records the failure.
func (s *KeyedStore[T]) rollbackMutation(key string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot, ok := s.pending[key]; ok {
		s.entries[key] = snapshot
		delete(s.pending, key)
	}
	s.err = cause
}

// setNow overrides the clock for tests.
func (s *KeyedStore[T]) setNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
