// Package engine implements the workflow executor
//
// An execution passes policy gates, takes the device lock, runs its steps
// in manifest order through the provider registry, and releases the lock
// on every exit path. Progress is published as typed events on a bounded
// channel
package engine
