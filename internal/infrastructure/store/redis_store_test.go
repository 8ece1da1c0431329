package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, ""), mr
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart", []byte(`{"cartItems":[]}`), time.Time{}))
	assert.True(t, mr.Exists("storefront:cart"))

	value, ok, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"cartItems":[]}`, string(value))

	require.NoError(t, s.Delete(ctx, "cart"))
	assert.False(t, mr.Exists("storefront:cart"))

	_, ok, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ExpiryBecomesTTL(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "token", []byte("abc"), time.Now().Add(time.Hour)))

	ttl := mr.TTL("storefront:token")
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	mr.FastForward(61 * time.Minute)
	_, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_PastExpiryDeletes(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "token", []byte("abc"), time.Time{}))
	require.NoError(t, s.Set(ctx, "token", []byte("abc"), time.Now().Add(-time.Minute)))

	assert.False(t, mr.Exists("storefront:token"))
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "tenant-a:")
	require.NoError(t, s.Set(context.Background(), "cart", []byte("{}"), time.Time{}))
	assert.True(t, mr.Exists("tenant-a:cart"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.Close()

	_, _, err := s.Get(context.Background(), "cart")
	assert.Error(t, err)
}
