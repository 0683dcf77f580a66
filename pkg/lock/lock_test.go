package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	l := NewRedisLocker(client, "rota:lock:")

	release, err := l.Acquire(ctx, "sched-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("rota:lock:sched-1"))

	_, err = l.Acquire(ctx, "sched-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "sched-2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, mr.Exists("rota:lock:sched-1"))

	again, err := l.Acquire(ctx, "sched-1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	l := NewRedisLocker(client, "")

	staleRelease, err := l.Acquire(ctx, "sched-1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := l.Acquire(ctx, "sched-1", time.Minute)
	require.NoError(t, err)

	staleRelease()
	assert.True(t, mr.Exists("sched-1"), "a stale holder must not delete the new token")
	release()
	assert.False(t, mr.Exists("sched-1"))
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	release, err := l.Acquire(ctx, "sched-1", time.Minute)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "sched-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	_, err = l.Acquire(ctx, "sched-1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "sched-1", time.Minute)
	assert.NoError(t, err, "expired locks can be taken over")
}
