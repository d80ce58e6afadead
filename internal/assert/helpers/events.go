package helpers

import (
	"sync"
	"testing"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// EventRecorder drains an execution event stream and keeps every event
type EventRecorder struct {
	events []api.ExecutionEvent
	notify chan struct{}
	done   chan struct{}
	mu     sync.Mutex
}

// DefaultWaitTimeout bounds helper waits in tests
const DefaultWaitTimeout = 5 * time.Second

// RecordEvents starts draining ch until it is closed
func RecordEvents(ch <-chan api.ExecutionEvent) *EventRecorder {
	r := &EventRecorder{
		notify: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		for ev := range ch {
			r.mu.Lock()
			r.events = append(r.events, ev)
			close(r.notify)
			r.notify = make(chan struct{})
			r.mu.Unlock()
		}
	}()
	return r
}

// Events returns every event seen for an execution
func (r *EventRecorder) Events(id api.ExecutionID) []api.ExecutionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []api.ExecutionEvent
	for _, ev := range r.events {
		if ev.ExecutionID == id {
			res = append(res, ev)
		}
	}
	return res
}

// Types returns the event types seen for an execution, in order
func (r *EventRecorder) Types(id api.ExecutionID) []api.EventType {
	var res []api.EventType
	for _, ev := range r.Events(id) {
		res = append(res, ev.Type)
	}
	return res
}

// All returns every recorded event
func (r *EventRecorder) All() []api.ExecutionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.ExecutionEvent(nil), r.events...)
}

// WaitFor blocks until an event of typ arrives for the execution
func (r *EventRecorder) WaitFor(
	t *testing.T, id api.ExecutionID, typ api.EventType,
) api.ExecutionEvent {
	t.Helper()
	timer := time.NewTimer(DefaultWaitTimeout)
	defer timer.Stop()
	for {
		r.mu.Lock()
		for _, ev := range r.events {
			if ev.ExecutionID == id && ev.Type == typ {
				r.mu.Unlock()
				return ev
			}
		}
		ch := r.notify
		r.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			t.Fatalf("timeout waiting for %s on %s", typ, id)
			return api.ExecutionEvent{}
		}
	}
}

// Closed reports whether the stream has been closed and drained
func (r *EventRecorder) Closed() <-chan struct{} {
	return r.done
}
