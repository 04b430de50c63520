package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

type testDoc struct {
	Title string
	Body  string
}

type testPatch struct {
	Title *string
}

func newDocUpdater(send SendFunc[testDoc, testPatch]) (*KeyedStore[testDoc], *OptimisticUpdater[testDoc, testPatch]) {
	store := NewKeyedStore("docs", time.Hour, func(ctx context.Context, key string) (testDoc, error) {
		return testDoc{Title: "server title", Body: "server body"}, nil
	}, nil)

	apply := func(current testDoc, patch testPatch) testDoc {
		if patch.Title != nil {
			current.Title = *patch.Title
		}
		return current
	}

	return store, NewOptimisticUpdater(store, apply, send, nil)
}

func TestOptimisticUpdater_ConfirmedUpdate(t *testing.T) {
	var sent testPatch
	store, updater := newDocUpdater(func(ctx context.Context, key string, patch testPatch) (testDoc, error) {
		sent = patch
		return testDoc{Title: *patch.Title, Body: "server body v2"}, nil
	})

	assert.NoError(t, store.Fetch(context.Background(), "d1", false))

	title := "edited title"
	err := updater.Update(context.Background(), "d1", testPatch{Title: &title})
	assert.NoError(t, err)
	assert.Equal(t, &title, sent.Title)

	doc, ok := store.Get("d1")
	assert.True(t, ok)
	assert.Equal(t, "edited title", doc.Title)
	assert.Equal(t, "server body v2", doc.Body, "the server answer is authoritative")
}

func TestOptimisticUpdater_UncachedEntryFailsFast(t *testing.T) {
	sendCalled := false
	_, updater := newDocUpdater(func(ctx context.Context, key string, patch testPatch) (testDoc, error) {
		sendCalled = true
		return testDoc{}, nil
	})

	title := "x"
	err := updater.Update(context.Background(), "never-loaded", testPatch{Title: &title})

	assert.ErrorIs(t, err, shared.ErrNotCached)
	assert.False(t, sendCalled, "nothing may be sent when there is no snapshot to roll back to")
}

func TestOptimisticUpdater_FailedSendRollsBack(t *testing.T) {
	optimisticSeen := testDoc{}
	store, updater := newDocUpdater(nil)
	updater.send = func(ctx context.Context, key string, patch testPatch) (testDoc, error) {
		optimisticSeen, _ = store.Get(key)
		return testDoc{}, shared.ErrNetwork
	}

	assert.NoError(t, store.Fetch(context.Background(), "d1", false))
	stamp, _ := store.LastFetched("d1")

	title := "doomed edit"
	err := updater.Update(context.Background(), "d1", testPatch{Title: &title})
	assert.ErrorIs(t, err, shared.ErrNetwork)

	// The optimistic value was visible during the round-trip.
	assert.Equal(t, "doomed edit", optimisticSeen.Title)

	// And gone without a trace after the rollback.
	doc, _ := store.Get("d1")
	assert.Equal(t, "server title", doc.Title)
	assert.Equal(t, "server body", doc.Body)
	got, _ := store.LastFetched("d1")
	assert.Equal(t, stamp, got)
	assert.ErrorIs(t, store.Err(), shared.ErrNetwork)
}

func TestOptimisticUpdater_RetryAfterRollbackSucceeds(t *testing.T) {
	fail := true
	store, updater := newDocUpdater(func(ctx context.Context, key string, patch testPatch) (testDoc, error) {
		if fail {
			return testDoc{}, shared.ErrTimeout
		}
		return testDoc{Title: *patch.Title, Body: "server body"}, nil
	})

	assert.NoError(t, store.Fetch(context.Background(), "d1", false))

	title := "second try"
	assert.Error(t, updater.Update(context.Background(), "d1", testPatch{Title: &title}))

	fail = false
	assert.NoError(t, updater.Update(context.Background(), "d1", testPatch{Title: &title}))

	doc, _ := store.Get("d1")
	assert.Equal(t, "second try", doc.Title)
	assert.NoError(t, store.Err())
}
