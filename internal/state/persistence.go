package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE KEYS
// ══════════════════════════════════════════════════════════════════════════════

// Durable storage keys, one per persisted store.
const (
	KeySessionStorage       = "session-storage"
	KeyUserStorage          = "user-storage"
	KeyMetricsStorage       = "metrics-storage"
	KeyMoodStorage          = "mood-storage"
	KeyActivitiesStorage    = "activities-storage"
	KeyNotificationsStorage = "notifications-storage"
	KeyStudentsStorage      = "students-storage"
	KeyProfilesStorage      = "student-profiles-storage"

	// KeyRememberedEmail is deliberately not registered with the adapter:
	// it survives session expiry and is removed only on explicit logout.
	KeyRememberedEmail = "remembered-email"
)

// PersistedNotificationLimit caps how many notifications the durable
// projection keeps; only the most recent ones survive a restart.
const PersistedNotificationLimit = 10

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// Registration wires one store into the persistence adapter.
type Registration struct {
	// Key is the durable storage key.
	Key string

	// Capture returns the store's durable projection. Returning ok=false
	// means there is nothing worth persisting and the key is removed. The
	// projection is bounded by design: it is a subset of in-memory state,
	// never a superset, and never includes unconfirmed optimistic writes.
	Capture func() (any, bool)

	// Restore rehydrates the store from a previously captured projection.
	// An error marks the blob corrupt; the adapter drops the key.
	Restore func(data []byte) error
}

// PersistenceAdapter snapshots registered stores into durable storage and
// rehydrates them on startup. Each store is saved under its own key so the
// invalidation cascade can clear them individually and observably.
type PersistenceAdapter struct {
	storage DurableStorage
	logger  *slog.Logger

	mu   sync.Mutex
	regs []Registration
}

// NewPersistenceAdapter creates a PersistenceAdapter over the given storage.
func NewPersistenceAdapter(storage DurableStorage, logger *slog.Logger) *PersistenceAdapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &PersistenceAdapter{
		storage: storage,
		logger:  logger.With("component", "persistence"),
	}
}

// Register adds a store to the persisted set. Not safe to call concurrently
// with SaveAll/Rehydrate/Clear; registration happens during wiring.
func (p *PersistenceAdapter) Register(reg Registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs = append(p.regs, reg)
}

// Keys returns the registered storage keys in registration order.
func (p *PersistenceAdapter) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.regs))
	for _, reg := range p.regs {
		keys = append(keys, reg.Key)
	}
	return keys
}

// SaveAll captures every registered store and writes the projections to
// durable storage. A failed write is logged and the remaining stores are
// still saved; the first error is returned.
func (p *PersistenceAdapter) SaveAll(ctx context.Context) error {
	p.mu.Lock()
	regs := make([]Registration, len(p.regs))
	copy(regs, p.regs)
	p.mu.Unlock()

	var firstErr error
	for _, reg := range regs {
		if err := p.saveOne(ctx, reg); err != nil {
			p.logger.Error("store save failed", "key", reg.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *PersistenceAdapter) saveOne(ctx context.Context, reg Registration) error {
	projection, ok := reg.Capture()
	if !ok {
		return p.storage.Remove(ctx, reg.Key)
	}

	data, err := json.Marshal(projection)
	if err != nil {
		return shared.WrapError("persistence", "SaveAll", nil, "marshal failed", err)
	}
	return p.storage.Set(ctx, reg.Key, data)
}

// Rehydrate restores every registered store from durable storage. Missing
// keys are skipped silently; corrupt blobs are logged and removed rather
// than poisoning startup.
func (p *PersistenceAdapter) Rehydrate(ctx context.Context) error {
	p.mu.Lock()
	regs := make([]Registration, len(p.regs))
	copy(regs, p.regs)
	p.mu.Unlock()

	var firstErr error
	for _, reg := range regs {
		data, err := p.storage.Get(ctx, reg.Key)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			p.logger.Error("store read failed", "key", reg.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := reg.Restore(data); err != nil {
			p.logger.Warn("corrupt persisted store, dropping", "key", reg.Key, "error", err)
			_ = p.storage.Remove(ctx, reg.Key)
		}
	}
	return firstErr
}

// Clear removes every registered key from durable storage. This is the
// cascade's durable-storage step; it runs after the in-memory caches have
// been reset and before identity is cleared.
func (p *PersistenceAdapter) Clear(ctx context.Context) error {
	p.mu.Lock()
	regs := make([]Registration, len(p.regs))
	copy(regs, p.regs)
	p.mu.Unlock()

	var firstErr error
	for _, reg := range regs {
		if err := p.storage.Remove(ctx, reg.Key); err != nil {
			p.logger.Error("store clear failed", "key", reg.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	p.logger.Info("durable storage cleared", "keys", len(regs))
	return firstErr
}
