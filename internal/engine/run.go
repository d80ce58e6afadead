package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type (
	// Run is one execution of a workflow against a device
	Run struct {
		engine  *Engine
		def     *api.WorkflowDefinition
		exec    *api.ExecutionContext
		result  *api.ExecutionResult
		outputs map[string]string
		span    trace.Span
		ctx     context.Context
		cancel  context.CancelFunc
		done    chan struct{}
		resume  chan struct{}
		mu      sync.Mutex
	}

	outcome struct {
		status     api.ExecutionStatus
		err        string
		failedStep api.StepID
	}
)

// ExecutionCancelled is the result error of a cancelled execution
const ExecutionCancelled = "Execution cancelled"

// Start resolves the workflow, evaluates its gates, and takes the device
// lock. A run that clears both proceeds in its own goroutine; one that is
// refused is returned already finished. Only validation problems and lock
// backend failures are returned as errors
func (e *Engine) Start(ctx context.Context, req *Request) (*Run, error) {
	if e.isStopped() {
		return nil, ErrEngineStopped
	}
	if req.Serial == "" {
		return nil, ErrSerialRequired
	}
	def, err := e.workflows.Get(req.WorkflowID)
	if err != nil {
		return nil, err
	}

	r := e.newRun(ctx, def, req)

	if !r.authorize() {
		r.reject()
		return r, nil
	}

	acquired, err := r.acquire()
	if err != nil {
		r.span.RecordError(err)
		r.span.End()
		r.cancel()
		return nil, err
	}
	if !acquired {
		r.reject()
		return r, nil
	}

	if err := e.register(r, true); err != nil {
		r.releaseLock()
		r.span.End()
		r.cancel()
		return nil, err
	}

	e.metrics.ExecutionStarted()
	go r.execute()
	return r, nil
}

func (e *Engine) newRun(
	parent context.Context, def *api.WorkflowDefinition, req *Request,
) *Run {
	id := api.NewExecutionID()
	ctx, span := e.tracer.Start(
		context.WithoutCancel(parent), "workflow.execute",
		trace.WithAttributes(
			attribute.String("execution.id", string(id)),
			attribute.String("workflow.id", string(def.ID)),
			attribute.String("device.serial", string(req.Serial)),
		),
	)
	ctx, cancel := context.WithCancel(ctx)

	res := api.NewExecutionResult(id, def, req.Serial, req.DeviceName)
	res.StartedAt = e.clock()

	return &Run{
		engine:  e,
		def:     def,
		exec:    req.Context.Clone(),
		result:  res,
		outputs: map[string]string{},
		span:    span,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// ID returns the execution id
func (r *Run) ID() api.ExecutionID {
	return r.result.ID
}

// Done is closed once the execution has reached a terminal state
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns a snapshot of the execution's current state
func (r *Run) Result() *api.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result.Clone()
}

// Wait blocks until the execution finishes or ctx ends
func (r *Run) Wait(ctx context.Context) (*api.ExecutionResult, error) {
	select {
	case <-r.done:
		return r.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// reject finishes a run refused by a gate or the device lock. Nothing was
// dispatched, so no events are emitted
func (r *Run) reject() {
	e := r.engine
	r.mu.Lock()
	r.setStatus(api.ExecutionFailed)
	r.result.CompletedAt = e.clock()
	res := r.result.Clone()
	r.mu.Unlock()

	r.recordOutcome(res)
	e.metrics.ExecutionRejected(string(r.def.ID), string(res.Kind))
	r.span.SetStatus(codes.Error, res.Error)
	r.span.End()
	r.cancel()
	close(r.done)
	_ = e.register(r, false)
}

func (r *Run) execute() {
	e := r.engine
	defer e.wg.Done()
	defer close(r.done)
	defer r.cancel()
	defer r.span.End()

	r.mu.Lock()
	r.setStatus(api.ExecutionRunning)
	r.mu.Unlock()

	slog.Info("Execution started",
		log.ExecutionID(r.result.ID),
		log.WorkflowID(r.def.ID),
		log.Serial(r.result.DeviceSerial))
	r.emit(api.EventExecutionStarted, nil, "", 0)

	out := r.runSteps()
	r.conclude(out)
}

// runSteps runs every step in order and always releases the device lock
// before returning. A critical failure is rolled back while the lock is
// still held
func (r *Run) runSteps() outcome {
	defer r.releaseLock()

	for i, step := range r.def.Steps {
		if err := r.checkpoint(); err != nil {
			r.skipFrom(i)
			return outcome{status: api.ExecutionCancelled, err: ExecutionCancelled}
		}

		err := r.runStep(i, step)
		if err == nil {
			continue
		}
		if r.ctx.Err() != nil {
			r.skipFrom(i + 1)
			return outcome{status: api.ExecutionCancelled, err: ExecutionCancelled}
		}
		if step.NonCritical {
			slog.Warn("Non-critical step failed",
				log.ExecutionID(r.result.ID),
				log.StepID(step.ID),
				log.Error(err))
			continue
		}
		r.skipFrom(i + 1)
		r.rollback(step.ID)
		return outcome{
			status:     api.ExecutionFailed,
			err:        fmt.Sprintf("Step %s failed: %s", step.Name, err),
			failedStep: step.ID,
		}
	}
	return outcome{status: api.ExecutionCompleted}
}

// checkpoint holds a paused run until it is resumed or cancelled
func (r *Run) checkpoint() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	resume := r.resume
	r.mu.Unlock()
	if resume == nil {
		return nil
	}

	slog.Info("Execution paused",
		log.ExecutionID(r.result.ID))
	r.emit(api.EventExecutionPaused, nil, "", 0)
	select {
	case <-resume:
		slog.Info("Execution resumed",
			log.ExecutionID(r.result.ID))
		r.emit(api.EventExecutionResumed, nil, "", 0)
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

func (r *Run) pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result.Status.IsTerminal() || r.finished() {
		return fmt.Errorf("%w: %s", ErrExecutionFinished, r.result.ID)
	}
	if r.resume == nil {
		r.resume = make(chan struct{})
		r.result.Paused = true
	}
	return nil
}

func (r *Run) unpause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result.Status.IsTerminal() || r.finished() {
		return fmt.Errorf("%w: %s", ErrExecutionFinished, r.result.ID)
	}
	if r.resume != nil {
		close(r.resume)
		r.resume = nil
		r.result.Paused = false
	}
	return nil
}

func (r *Run) conclude(out outcome) {
	e := r.engine

	r.mu.Lock()
	r.setStatus(out.status)
	r.result.Error = out.err
	r.result.FailedStep = out.failedStep
	r.result.Paused = false
	r.result.CompletedAt = e.clock()
	switch out.status {
	case api.ExecutionCompleted:
		r.result.Kind = api.ResultCompleted
		r.result.Success = true
	case api.ExecutionCancelled:
		r.result.Kind = api.ResultCancelled
	default:
		r.result.Kind = api.ResultFailed
	}
	res := r.result.Clone()
	r.mu.Unlock()

	r.recordOutcome(res)
	e.metrics.ExecutionFinished(string(r.def.ID), string(res.Status))

	if res.Success {
		r.span.SetStatus(codes.Ok, "")
	} else {
		r.span.SetStatus(codes.Error, res.Error)
	}

	slog.Info("Execution finished",
		log.ExecutionID(res.ID),
		log.WorkflowID(res.WorkflowID),
		log.Status(res.Status),
		slog.Int("completed_steps", res.CompletedSteps),
		slog.Int("total_steps", res.TotalSteps))

	r.emit(terminalEvent[out.status], nil, out.err, 0)
}

func (r *Run) releaseLock() {
	ctx, cancel := context.WithTimeout(
		context.WithoutCancel(r.ctx), releaseTimeout,
	)
	defer cancel()
	if err := r.engine.locks.Release(ctx, r.result.DeviceSerial); err != nil {
		slog.Error("Failed to release device lock",
			log.ExecutionID(r.result.ID),
			log.Serial(r.result.DeviceSerial),
			log.Error(err))
	}
}

func (r *Run) skipFrom(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.result.Steps[i:] {
		r.setStepStatus(s, api.StepSkipped)
	}
}

func (r *Run) emit(
	typ api.EventType, step *api.WorkflowStep, errMsg string, attempt int,
) {
	r.mu.Lock()
	ev := api.ExecutionEvent{
		Type:           typ,
		ExecutionID:    r.result.ID,
		WorkflowID:     r.result.WorkflowID,
		DeviceSerial:   r.result.DeviceSerial,
		DeviceName:     r.result.DeviceName,
		Error:          errMsg,
		Attempt:        attempt,
		CompletedSteps: r.result.CompletedSteps,
		TotalSteps:     r.result.TotalSteps,
	}
	r.mu.Unlock()
	if step != nil {
		ev.StepID = step.ID
		ev.StepName = step.Name
	}
	r.engine.emit(ev)
}

func (r *Run) recordOutcome(res *api.ExecutionResult) {
	r.record(api.AuditRecord{
		ActionType: api.AuditExecutionOutcome,
		ActionID:   string(res.WorkflowID),
		ActionName: r.def.Name,
		Args: map[string]string{
			"status":         string(res.Status),
			"kind":           string(res.Kind),
			"completedSteps": fmt.Sprint(res.CompletedSteps),
			"totalSteps":     fmt.Sprint(res.TotalSteps),
		},
		Success: res.Success,
		Error:   res.Error,
	})
}

func (r *Run) record(rec api.AuditRecord) {
	rec.JobID = api.JobID(r.result.ID)
	rec.CaseID = r.exec.CaseID
	rec.Actor = r.exec.ActorOrDefault()
	r.engine.record(context.WithoutCancel(r.ctx), rec)
}
