package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
)

func newRedisManager(
	t *testing.T, timeout time.Duration,
) (*lock.RedisManager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return lock.NewRedisManager(rdb, "test", timeout), mr
}

func TestRedisAcquireRelease(t *testing.T) {
	ctx := context.Background()
	m, mr := newRedisManager(t, time.Minute)

	res, err := m.Acquire(ctx, "SN123", "flash")
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.True(t, mr.Exists("test:lock:SN123"))

	res, err = m.Acquire(ctx, "SN123", "erase")
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "flash", res.LockedBy)

	require.NoError(t, m.Release(ctx, "SN123"))
	require.NoError(t, m.Release(ctx, "SN123"))
	assert.False(t, mr.Exists("test:lock:SN123"))
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	m, mr := newRedisManager(t, time.Minute)

	res, _ := m.Acquire(ctx, "SN123", "flash")
	require.True(t, res.Acquired)

	mr.FastForward(61 * time.Second)

	held, err := m.Get(ctx, "SN123")
	require.NoError(t, err)
	assert.Nil(t, held)

	res, err = m.Acquire(ctx, "SN123", "erase")
	require.NoError(t, err)
	assert.True(t, res.Acquired)
}

func TestRedisList(t *testing.T) {
	ctx := context.Background()
	m, _ := newRedisManager(t, time.Minute)

	_, _ = m.Acquire(ctx, "SN2", "flash")
	_, _ = m.Acquire(ctx, "SN1", "adb-diagnostics")

	locks, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, "SN1", string(locks[0].Serial))
	assert.Equal(t, "adb-diagnostics", locks[0].Operation)
}

func TestRedisConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	m, _ := newRedisManager(t, time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			res, err := m.Acquire(ctx, "SN-RACE", "flash")
			if err == nil && res.Acquired {
				wins.Add(1)
			}
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRedisBackendError(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	defer func() { _ = rdb.Close() }()
	m := lock.NewRedisManager(rdb, "test", time.Minute)

	_, err = m.Acquire(ctx, "SN1", "flash")
	assert.ErrorIs(t, err, lock.ErrLockBackend)
}
