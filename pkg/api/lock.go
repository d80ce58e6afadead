package api

import "time"

type (
	// DeviceLock is an exclusive, expiring claim on one physical device
	DeviceLock struct {
		AcquiredAt time.Time `json:"acquiredAt"`
		ExpiresAt  time.Time `json:"expiresAt"`
		Serial     Serial    `json:"serial"`
		Operation  string    `json:"operation"`
	}

	// LockResult reports the outcome of an acquire attempt
	LockResult struct {
		ExpiresAt time.Time `json:"expiresAt,omitzero"`
		LockedBy  string    `json:"lockedBy,omitempty"`
		Reason    string    `json:"reason,omitempty"`
		Acquired  bool      `json:"acquired"`
	}
)

// ExpiredAt reports whether the lock is no longer live at the given time
func (l *DeviceLock) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
