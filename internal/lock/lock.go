package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type (
	// Manager grants and releases device locks
	Manager interface {
		// Acquire claims the device for an operation. A live lock held by
		// anyone, including the same operation, is reported as not acquired.
		// The error return is reserved for backend failures
		Acquire(
			ctx context.Context, serial api.Serial, operation string,
		) (*api.LockResult, error)

		// Release removes any lock on the device
		Release(ctx context.Context, serial api.Serial) error

		// Get returns the live lock on the device, if any
		Get(ctx context.Context, serial api.Serial) (*api.DeviceLock, error)

		// List returns every live lock
		List(ctx context.Context) ([]*api.DeviceLock, error)

		// Timeout returns the lock time-to-live
		Timeout() time.Duration
	}

	// Clock provides the current time for expiry decisions
	Clock func() time.Time
)

// DefaultTimeout is the lock time-to-live when none is configured
const DefaultTimeout = 5 * time.Minute

// RetryAfterSeconds converts a lock TTL into the retry hint returned to
// callers who find a device locked
func RetryAfterSeconds(timeout time.Duration) int64 {
	return int64(timeout / time.Second)
}

func lockedResult(l *api.DeviceLock) *api.LockResult {
	return &api.LockResult{
		Acquired:  false,
		LockedBy:  l.Operation,
		ExpiresAt: l.ExpiresAt,
		Reason: fmt.Sprintf("device %s is locked by %s until %s",
			l.Serial, l.Operation, l.ExpiresAt.UTC().Format(time.RFC3339)),
	}
}

func acquiredResult(l *api.DeviceLock) *api.LockResult {
	return &api.LockResult{
		Acquired:  true,
		ExpiresAt: l.ExpiresAt,
	}
}
