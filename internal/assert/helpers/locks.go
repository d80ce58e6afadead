package helpers

import (
	"context"
	"sync"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// LockSpy wraps a lock manager and counts acquires and releases
type LockSpy struct {
	lock.Manager
	acquires map[api.Serial]int
	releases map[api.Serial]int
	mu       sync.Mutex
}

var _ lock.Manager = (*LockSpy)(nil)

// NewLockSpy wraps m
func NewLockSpy(m lock.Manager) *LockSpy {
	return &LockSpy{
		Manager:  m,
		acquires: map[api.Serial]int{},
		releases: map[api.Serial]int{},
	}
}

// Acquire counts the call and delegates
func (s *LockSpy) Acquire(
	ctx context.Context, serial api.Serial, operation string,
) (*api.LockResult, error) {
	s.mu.Lock()
	s.acquires[serial]++
	s.mu.Unlock()
	return s.Manager.Acquire(ctx, serial, operation)
}

// Release counts the call and delegates
func (s *LockSpy) Release(ctx context.Context, serial api.Serial) error {
	s.mu.Lock()
	s.releases[serial]++
	s.mu.Unlock()
	return s.Manager.Release(ctx, serial)
}

// Acquires returns how often Acquire was called for serial
func (s *LockSpy) Acquires(serial api.Serial) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires[serial]
}

// Releases returns how often Release was called for serial
func (s *LockSpy) Releases(serial api.Serial) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases[serial]
}

// Held reports whether serial currently has a live lock
func (s *LockSpy) Held(serial api.Serial) bool {
	l, err := s.Get(context.Background(), serial)
	return err == nil && l != nil
}
