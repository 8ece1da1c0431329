package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart", []byte(`{"a":1}`), time.Time{}))

	value, ok, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(value))

	require.NoError(t, s.Delete(ctx, "cart"))
	_, ok, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is fine
	assert.NoError(t, s.Delete(ctx, "cart"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "token", []byte("abc"), clock.now.Add(time.Hour)))

	clock.Advance(59 * time.Minute)
	_, ok, _ := s.Get(ctx, "token")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = s.Get(ctx, "token")
	assert.False(t, ok, "entry is gone exactly at its expiry")
	assert.Empty(t, s.Keys())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	original := []byte("value")
	require.NoError(t, s.Set(ctx, "k", original, time.Time{}))
	original[0] = 'X'

	value, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "value", string(value))
}

func TestMemoryStore_EmptyKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, s.Set(ctx, "", nil, time.Time{}), ErrEmptyKey)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrEmptyKey)
}
