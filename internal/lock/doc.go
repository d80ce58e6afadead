// Package lock provides exclusive, expiring locks on physical devices
//
// At most one live lock exists per device serial. Locks expire lazily: an
// expired lock is replaced by the next Acquire rather than swept. Release is
// unconditional and idempotent
package lock
