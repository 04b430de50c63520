package state

import (
	"context"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIMISTIC UPDATER
// ══════════════════════════════════════════════════════════════════════════════

// ApplyFunc computes the optimistic value from the current value and a patch.
type ApplyFunc[T, P any] func(current T, patch P) T

// SendFunc persists the patch to the backend and returns the authoritative
// value.
type SendFunc[T, P any] func(ctx context.Context, key string, patch P) (T, error)

// OptimisticUpdater runs the optimistic mutation protocol against a
// KeyedStore: snapshot, apply locally, persist, then confirm with the server
// value or roll back to the exact snapshot. The UI sees the edit immediately;
// the server stays authoritative.
type OptimisticUpdater[T, P any] struct {
	store  *KeyedStore[T]
	apply  ApplyFunc[T, P]
	send   SendFunc[T, P]
	logger *slog.Logger
}

// NewOptimisticUpdater creates an OptimisticUpdater over the given store.
func NewOptimisticUpdater[T, P any](store *KeyedStore[T], apply ApplyFunc[T, P], send SendFunc[T, P], logger *slog.Logger) *OptimisticUpdater[T, P] {
	if logger == nil {
		logger = slog.Default()
	}

	return &OptimisticUpdater[T, P]{
		store:  store,
		apply:  apply,
		send:   send,
		logger: logger,
	}
}

// Update runs one optimistic mutation for key. Fails fast with
// shared.ErrNotCached when the entry has not been loaded; nothing is applied
// and no request is sent in that case. On persistence failure the store is
// rolled back to the pre-mutation snapshot and the error is returned.
func (u *OptimisticUpdater[T, P]) Update(ctx context.Context, key string, patch P) error {
	snapshot, err := u.store.beginMutation(key)
	if err != nil {
		return err
	}

	u.store.applyOptimistic(key, u.apply(snapshot, patch))

	confirmed, err := u.send(ctx, key, patch)
	if err != nil {
		u.store.rollbackMutation(key, err)
		u.logger.Warn("optimistic update rolled back", "key", key, "error", err)
		return err
	}

	u.store.confirmMutation(key, confirmed)
	u.logger.Debug("optimistic update confirmed", "key", key)
	return nil
}
