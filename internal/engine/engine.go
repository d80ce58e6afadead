package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/audit"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/config"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/observability"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/policy"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/provider"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/workflow"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type (
	// Engine runs workflow executions against connected devices
	Engine struct {
		workflows *workflow.Registry
		policy    policy.Evaluator
		locks     lock.Manager
		providers *provider.Registry
		audit     audit.Sink
		metrics   *observability.Metrics
		tracer    trace.Tracer
		clock     Clock
		events    chan api.ExecutionEvent
		runs      map[api.ExecutionID]*Run
		order     []api.ExecutionID
		wg        sync.WaitGroup
		mu        sync.RWMutex
		closeOnce sync.Once
		stopped   bool
	}

	// Dependencies are the collaborators an Engine needs. Audit, Metrics,
	// Tracer, and Clock are optional
	Dependencies struct {
		Workflows *workflow.Registry
		Policy    policy.Evaluator
		Locks     lock.Manager
		Providers *provider.Registry
		Audit     audit.Sink
		Metrics   *observability.Metrics
		Tracer    trace.Tracer
		Clock     Clock
	}

	// Request asks for one workflow to run against one device
	Request struct {
		Context    *api.ExecutionContext
		WorkflowID api.WorkflowID
		Serial     api.Serial
		DeviceName string
	}

	// Clock provides the current time for timestamps
	Clock func() time.Time
)

const releaseTimeout = 5 * time.Second

var (
	ErrMissingDependency = errors.New("missing engine dependency")
	ErrInvalidConfig     = errors.New("invalid engine config")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrExecutionFinished = errors.New("execution already finished")
	ErrEngineStopped     = errors.New("engine stopped")
	ErrSerialRequired    = errors.New("device serial required")
	ErrActionPanicked    = errors.New("action panicked")
	ErrMissingInput      = errors.New("missing step input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrShutdownTimeout   = errors.New("shutdown timeout exceeded")
)

// New creates an engine from a validated configuration and its
// dependencies
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := deps.check(); err != nil {
		return nil, err
	}
	if deps.Audit == nil {
		deps.Audit = audit.DiscardSink{}
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.NoopTracer()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Engine{
		workflows: deps.Workflows,
		policy:    deps.Policy,
		locks:     deps.Locks,
		providers: deps.Providers,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		clock:     deps.Clock,
		events:    make(chan api.ExecutionEvent, cfg.EventBufferSize),
		runs:      map[api.ExecutionID]*Run{},
	}, nil
}

func (d Dependencies) check() error {
	switch {
	case d.Workflows == nil:
		return fmt.Errorf("%w: workflows", ErrMissingDependency)
	case d.Policy == nil:
		return fmt.Errorf("%w: policy", ErrMissingDependency)
	case d.Locks == nil:
		return fmt.Errorf("%w: locks", ErrMissingDependency)
	case d.Providers == nil:
		return fmt.Errorf("%w: providers", ErrMissingDependency)
	}
	return nil
}

// Events returns the execution event stream. A full channel blocks the
// emitting execution until a reader catches up. The channel is closed
// once Stop has drained every execution
func (e *Engine) Events() <-chan api.ExecutionEvent {
	return e.events
}

// Workflows returns the registry the engine resolves workflow ids against
func (e *Engine) Workflows() *workflow.Registry {
	return e.workflows
}

// Locks returns the device lock manager
func (e *Engine) Locks() lock.Manager {
	return e.locks
}

// Execute starts an execution and waits for its terminal result. If ctx
// ends first the execution is cancelled and its cancelled result returned
func (e *Engine) Execute(
	ctx context.Context, req *Request,
) (*api.ExecutionResult, error) {
	r, err := e.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		r.cancel()
		<-r.done
	}
	return r.Result(), nil
}

// Cancel stops a running execution and returns once it has released its
// lock and reached the cancelled state
func (e *Engine) Cancel(ctx context.Context, id api.ExecutionID) error {
	r, err := e.run(id)
	if err != nil {
		return err
	}
	if r.finished() {
		return fmt.Errorf("%w: %s", ErrExecutionFinished, id)
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause asks a running execution to hold before its next step
func (e *Engine) Pause(id api.ExecutionID) error {
	r, err := e.run(id)
	if err != nil {
		return err
	}
	return r.pause()
}

// Resume releases a paused execution
func (e *Engine) Resume(id api.ExecutionID) error {
	r, err := e.run(id)
	if err != nil {
		return err
	}
	return r.unpause()
}

// Lookup returns a snapshot of an execution's current result
func (e *Engine) Lookup(id api.ExecutionID) (*api.ExecutionResult, error) {
	r, err := e.run(id)
	if err != nil {
		return nil, err
	}
	return r.Result(), nil
}

// Active returns snapshots of executions that have not finished, oldest
// first
func (e *Engine) Active() []*api.ExecutionResult {
	return e.snapshot(func(r *Run) bool { return !r.finished() })
}

// List returns snapshots of every execution this process has seen, oldest
// first
func (e *Engine) List() []*api.ExecutionResult {
	return e.snapshot(func(*Run) bool { return true })
}

// Stop refuses new executions, cancels the running ones, and waits for
// them to release their locks. The event channel is closed when all have
// finished before ctx ends
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	runs := make([]*Run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.Unlock()

	for _, r := range runs {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.closeOnce.Do(func() { close(e.events) })
		slog.Info("Engine stopped",
			slog.Int("executions", len(runs)))
		return nil
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
}

func (e *Engine) run(id api.ExecutionID) (*Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.runs[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
}

func (e *Engine) snapshot(keep func(*Run) bool) []*api.ExecutionResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var res []*api.ExecutionResult
	for _, id := range e.order {
		if r := e.runs[id]; keep(r) {
			res = append(res, r.Result())
		}
	}
	return res
}

// register records a run. A launched run is counted so Stop can wait for
// it, and launching fails once the engine is stopping
func (e *Engine) register(r *Run, launch bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if launch {
		if e.stopped {
			return ErrEngineStopped
		}
		e.wg.Add(1)
	}
	id := r.result.ID
	e.runs[id] = r
	e.order = append(e.order, id)
	return nil
}

func (e *Engine) isStopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopped
}

func (e *Engine) emit(ev api.ExecutionEvent) {
	ev.Timestamp = e.clock().UnixMilli()
	e.events <- ev
}

func (e *Engine) record(ctx context.Context, rec api.AuditRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = e.clock()
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		slog.Warn("Audit record dropped",
			slog.String("action_type", rec.ActionType),
			log.Error(err))
	}
}
