package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/persistence/memory"
)

func TestPersistenceAdapter_SaveAndRehydrate(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	saved := map[string]int{"a": 1, "b": 2}
	var restored map[string]int

	adapter.Register(Registration{
		Key:     "test-storage",
		Capture: func() (any, bool) { return saved, true },
		Restore: func(data []byte) error { return json.Unmarshal(data, &restored) },
	})

	assert.NoError(t, adapter.SaveAll(context.Background()))
	assert.NoError(t, adapter.Rehydrate(context.Background()))
	assert.Equal(t, saved, restored)
}

func TestPersistenceAdapter_EmptyCaptureRemovesKey(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	hasValue := true
	adapter.Register(Registration{
		Key:     "test-storage",
		Capture: func() (any, bool) { return "payload", hasValue },
		Restore: func([]byte) error { return nil },
	})

	assert.NoError(t, adapter.SaveAll(context.Background()))
	assert.Equal(t, 1, storage.Len())

	// Once the store has nothing worth persisting, the stale blob goes too.
	hasValue = false
	assert.NoError(t, adapter.SaveAll(context.Background()))
	assert.Equal(t, 0, storage.Len())
}

func TestPersistenceAdapter_MissingKeysSkippedOnRehydrate(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	restoreCalled := false
	adapter.Register(Registration{
		Key:     "never-saved",
		Capture: func() (any, bool) { return nil, false },
		Restore: func([]byte) error { restoreCalled = true; return nil },
	})

	assert.NoError(t, adapter.Rehydrate(context.Background()))
	assert.False(t, restoreCalled)
}

func TestPersistenceAdapter_CorruptBlobDropped(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	assert.NoError(t, storage.Set(context.Background(), "test-storage", []byte("{not json")))

	adapter.Register(Registration{
		Key:     "test-storage",
		Capture: func() (any, bool) { return nil, false },
		Restore: func(data []byte) error {
			var out map[string]int
			return json.Unmarshal(data, &out)
		},
	})

	assert.NoError(t, adapter.Rehydrate(context.Background()),
		"a corrupt blob must not poison startup")
	assert.Equal(t, 0, storage.Len(), "the corrupt blob is removed")
}

func TestPersistenceAdapter_SaveContinuesPastFailure(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	adapter.Register(Registration{
		Key:     "broken-storage",
		Capture: func() (any, bool) { return func() {}, true }, // not marshalable
		Restore: func([]byte) error { return nil },
	})
	adapter.Register(Registration{
		Key:     "good-storage",
		Capture: func() (any, bool) { return 42, true },
		Restore: func([]byte) error { return nil },
	})

	err := adapter.SaveAll(context.Background())
	assert.Error(t, err, "the first failure is reported")

	_, getErr := storage.Get(context.Background(), "good-storage")
	assert.NoError(t, getErr, "later stores are still saved")
}

func TestPersistenceAdapter_ClearRemovesEveryKey(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	for _, key := range []string{"a-storage", "b-storage", "c-storage"} {
		k := key
		adapter.Register(Registration{
			Key:     k,
			Capture: func() (any, bool) { return k, true },
			Restore: func([]byte) error { return nil },
		})
	}

	assert.NoError(t, adapter.SaveAll(context.Background()))
	assert.Equal(t, 3, storage.Len())

	assert.NoError(t, adapter.Clear(context.Background()))
	assert.Equal(t, 0, storage.Len())
}

func TestPersistenceAdapter_ClearTolertatesMissingKeys(t *testing.T) {
	storage := memory.NewStorage()
	adapter := NewPersistenceAdapter(storage, nil)

	adapter.Register(Registration{
		Key:     "never-saved",
		Capture: func() (any, bool) { return nil, false },
		Restore: func([]byte) error { return nil },
	})

	assert.NoError(t, adapter.Clear(context.Background()))
}

type failingStorage struct {
	*memory.Storage
}

func (f *failingStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestPersistenceAdapter_ReadFailureReported(t *testing.T) {
	adapter := NewPersistenceAdapter(&failingStorage{Storage: memory.NewStorage()}, nil)

	adapter.Register(Registration{
		Key:     "test-storage",
		Capture: func() (any, bool) { return nil, false },
		Restore: func([]byte) error { return nil },
	})

	assert.Error(t, adapter.Rehydrate(context.Background()))
}
