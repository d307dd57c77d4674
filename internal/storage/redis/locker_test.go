package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, "market:", ttl), mr
}

// --- Tests ---

func TestLocker_Exclusive(t *testing.T) {
	l, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "checkout:c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("market:checkout:c1"))

	_, ok, err = l.TryLock(ctx, "checkout:c1")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = l.TryLock(ctx, "checkout:c2")
	require.NoError(t, err)
	assert.True(t, ok, "other customers are independent")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("market:checkout:c1"))

	_, ok, err = l.TryLock(ctx, "checkout:c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ExpiredLockNotStolenBack(t *testing.T) {
	l, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	staleUnlock, ok, err := l.TryLock(ctx, "checkout:c1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.TryLock(ctx, "checkout:c1")
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be reacquired")

	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("market:checkout:c1"), "stale holder must not release the new lock")
}

func TestLocker_ServerDown(t *testing.T) {
	l, mr := newTestLocker(t, time.Minute)
	mr.Close()

	_, _, err := l.TryLock(context.Background(), "checkout:c1")
	require.Error(t, err)
	require.Error(t, l.Ping(context.Background()))
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	require.Error(t, err)
}
