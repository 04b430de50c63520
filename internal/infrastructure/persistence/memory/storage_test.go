package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

func TestStorage_SetGetRoundTrip(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))

	got, err := s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)
	assert.Equal(t, 1, s.Len())
}

func TestStorage_GetMissingKey(t *testing.T) {
	s := NewStorage()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStorage_ValuesAreCopied(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	original := []byte("abc")
	assert.NoError(t, s.Set(ctx, "k", original))
	original[0] = 'X'

	got, err := s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), got, "callers must not be able to mutate stored bytes")

	got[0] = 'Y'
	again, err := s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestStorage_RemoveIsIdempotent(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "k", []byte("v")))
	assert.NoError(t, s.Remove(ctx, "k"))
	assert.NoError(t, s.Remove(ctx, "k"), "removing a missing key is not an error")

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStorage_Keys(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "a", []byte("1")))
	assert.NoError(t, s.Set(ctx, "b", []byte("2")))

	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}
