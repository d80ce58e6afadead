package lock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type (
	// MemoryManager keeps locks in process memory
	MemoryManager struct {
		locks   map[api.Serial]*api.DeviceLock
		clock   Clock
		timeout time.Duration
		mu      sync.Mutex
	}

	// MemoryOption configures a MemoryManager
	MemoryOption func(*MemoryManager)
)

var _ Manager = (*MemoryManager)(nil)

// WithClock overrides the time source used for expiry
func WithClock(clock Clock) MemoryOption {
	return func(m *MemoryManager) {
		m.clock = clock
	}
}

// NewMemoryManager creates an in-process lock table. A non-positive timeout
// selects DefaultTimeout
func NewMemoryManager(
	timeout time.Duration, opts ...MemoryOption,
) *MemoryManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &MemoryManager{
		locks:   map[api.Serial]*api.DeviceLock{},
		clock:   time.Now,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire checks and stores under one critical section, so two callers can
// never both observe the device as free
func (m *MemoryManager) Acquire(
	_ context.Context, serial api.Serial, operation string,
) (*api.LockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if l, ok := m.locks[serial]; ok && !l.ExpiredAt(now) {
		return lockedResult(l), nil
	}

	l := &api.DeviceLock{
		Serial:     serial,
		Operation:  operation,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.timeout),
	}
	m.locks[serial] = l
	return acquiredResult(l), nil
}

// Release removes the lock whether or not it is live
func (m *MemoryManager) Release(_ context.Context, serial api.Serial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, serial)
	return nil
}

// Get returns a copy of the live lock on the device, or nil
func (m *MemoryManager) Get(
	_ context.Context, serial api.Serial,
) (*api.DeviceLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[serial]
	if !ok || l.ExpiredAt(m.clock()) {
		return nil, nil
	}
	res := *l
	return &res, nil
}

// List returns copies of every live lock ordered by serial
func (m *MemoryManager) List(_ context.Context) ([]*api.DeviceLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	res := make([]*api.DeviceLock, 0, len(m.locks))
	for _, l := range m.locks {
		if l.ExpiredAt(now) {
			continue
		}
		c := *l
		res = append(res, &c)
	}
	slices.SortFunc(res, func(a, b *api.DeviceLock) int {
		return cmp.Compare(a.Serial, b.Serial)
	})
	return res, nil
}

// Timeout returns the lock time-to-live
func (m *MemoryManager) Timeout() time.Duration {
	return m.timeout
}
