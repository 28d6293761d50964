package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniredis creates a new miniredis server and returns a Redis client connected to it
func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_AcquireRelease(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisStore(client, 30*time.Second)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(keyPrefix+"ev-1"))
	assert.Equal(t, 30*time.Second, mr.TTL(keyPrefix+"ev-1"))

	ok, err = store.Acquire(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = store.Acquire(ctx, "ev-2")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per key")

	require.NoError(t, store.Release(ctx, "ev-1"))
	assert.False(t, mr.Exists(keyPrefix+"ev-1"))

	ok, err = store.Acquire(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_Expires(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisStore(client, time.Second)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "ev-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = store.Acquire(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be re-acquired")
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStore(client, time.Second)
	mr.Close()

	_, err = store.Acquire(context.Background(), "ev-1")

	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr, _ := setupMiniredis(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 8, 30, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := store.Acquire(ctx, "ev-1")
	assert.True(t, ok)
	ok, _ = store.Acquire(ctx, "ev-1")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = store.Acquire(ctx, "ev-1")
	assert.True(t, ok, "expired lock can be re-acquired")

	require.NoError(t, store.Release(ctx, "ev-1"))
	ok, _ = store.Acquire(ctx, "ev-1")
	assert.True(t, ok)
}
