package lock

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// RedisManager keeps locks in Redis so several service instances attached
// to the same bench share one lock table. Expiry is delegated to Redis key
// TTLs, and SET NX makes acquisition atomic across instances
type RedisManager struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// ErrLockBackend wraps failures talking to the lock store
var ErrLockBackend = errors.New("lock backend error")

const acquireAttempts = 2

var _ Manager = (*RedisManager)(nil)

// NewRedisManager creates a lock table stored under the given key prefix
func NewRedisManager(
	rdb redis.UniversalClient, prefix string, timeout time.Duration,
) *RedisManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RedisManager{
		rdb:     rdb,
		prefix:  prefix,
		timeout: timeout,
	}
}

// Acquire sets the lock key only if it does not exist. When the key exists
// the holder is read back; if it vanished in between, acquisition is tried
// once more
func (m *RedisManager) Acquire(
	ctx context.Context, serial api.Serial, operation string,
) (*api.LockResult, error) {
	for range acquireAttempts {
		now := time.Now()
		l := &api.DeviceLock{
			Serial:     serial,
			Operation:  operation,
			AcquiredAt: now,
			ExpiresAt:  now.Add(m.timeout),
		}
		data, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}

		ok, err := m.rdb.SetNX(ctx, m.key(serial), data, m.timeout).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockBackend, err)
		}
		if ok {
			return acquiredResult(l), nil
		}

		held, err := m.Get(ctx, serial)
		if err != nil {
			return nil, err
		}
		if held != nil {
			return lockedResult(held), nil
		}
	}
	return &api.LockResult{
		Reason: fmt.Sprintf("device %s lock is contended", serial),
	}, nil
}

// Release deletes the lock key
func (m *RedisManager) Release(ctx context.Context, serial api.Serial) error {
	if err := m.rdb.Del(ctx, m.key(serial)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLockBackend, err)
	}
	return nil
}

// Get reads the lock record for the device, or nil when none is live
func (m *RedisManager) Get(
	ctx context.Context, serial api.Serial,
) (*api.DeviceLock, error) {
	data, err := m.rdb.Get(ctx, m.key(serial)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockBackend, err)
	}
	var l api.DeviceLock
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockBackend, err)
	}
	return &l, nil
}

// List scans the prefix for live locks ordered by serial
func (m *RedisManager) List(ctx context.Context) ([]*api.DeviceLock, error) {
	var res []*api.DeviceLock
	iter := m.rdb.Scan(ctx, 0, m.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		serial := api.Serial(strings.TrimPrefix(iter.Val(), m.key("")))
		l, err := m.Get(ctx, serial)
		if err != nil {
			return nil, err
		}
		if l != nil {
			res = append(res, l)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockBackend, err)
	}
	slices.SortFunc(res, func(a, b *api.DeviceLock) int {
		return cmp.Compare(a.Serial, b.Serial)
	})
	return res, nil
}

// Timeout returns the lock time-to-live
func (m *RedisManager) Timeout() time.Duration {
	return m.timeout
}

func (m *RedisManager) key(serial api.Serial) string {
	return m.prefix + ":lock:" + string(serial)
}
