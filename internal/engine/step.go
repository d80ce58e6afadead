package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/observability"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/provider"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/workflow"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// action is a step resolved against the catalog and provider registry
type action struct {
	spec     *api.ActionSpec
	provider provider.Provider
	args     []string
}

// serialValue is the template name bound to the device serial
const serialValue = "serial"

// runStep runs one step to a terminal status and returns its failure
func (r *Run) runStep(i int, step *api.WorkflowStep) error {
	r.mu.Lock()
	sr := r.result.Steps[i]
	r.setStepStatus(sr, api.StepRunning)
	sr.StartedAt = r.engine.clock()
	r.mu.Unlock()

	slog.Debug("Step started",
		log.ExecutionID(r.result.ID),
		log.StepID(step.ID))
	r.emit(api.EventStepStarted, step, "", 0)

	var (
		act *action
		err error
	)
	switch step.ActionType {
	case api.ActionWait:
		r.setAttempts(sr, 1)
		err = sleep(r.ctx, step.TimeoutDuration())
	case api.ActionLog:
		r.setAttempts(sr, 1)
		r.setOutput(sr, step.Name)
		slog.Info("Workflow note",
			log.ExecutionID(r.result.ID),
			log.StepID(step.ID),
			slog.String("note", step.Name))
	default:
		act, err = r.resolve(step)
		if err == nil {
			err = r.dispatchWithRetry(step, sr, act)
		}
	}

	r.finishStep(step, sr, act, err)
	return err
}

func (r *Run) finishStep(
	step *api.WorkflowStep, sr *api.StepResult, act *action, err error,
) {
	r.mu.Lock()
	sr.CompletedAt = r.engine.clock()
	if err == nil {
		r.setStepStatus(sr, api.StepCompleted)
		r.result.CompletedSteps++
	} else {
		r.setStepStatus(sr, api.StepFailed)
		sr.Error = err.Error()
	}
	attempts := sr.Attempts
	r.mu.Unlock()

	args := map[string]string{
		"step":     string(step.ID),
		"attempts": fmt.Sprint(attempts),
	}
	if act != nil {
		args["command"] = act.spec.Command
		args["args"] = strings.Join(act.args, " ")
	}
	rec := api.AuditRecord{
		ActionType: api.AuditStepOutcome,
		ActionID:   string(step.ActionID),
		ActionName: step.Name,
		Args:       args,
		Success:    err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	r.record(rec)

	if err != nil {
		slog.Warn("Step failed",
			log.ExecutionID(r.result.ID),
			log.StepID(step.ID),
			slog.Int("attempts", attempts),
			log.Error(err))
		r.emit(api.EventStepFailed, step, err.Error(), attempts)
		return
	}
	slog.Debug("Step completed",
		log.ExecutionID(r.result.ID),
		log.StepID(step.ID),
		slog.Int("attempts", attempts))
	r.emit(api.EventStepCompleted, step, "", attempts)
}

// resolve looks up the step's action and provider and renders its
// arguments. Its failures are never retried
func (r *Run) resolve(step *api.WorkflowStep) (*action, error) {
	e := r.engine
	spec, ok := e.workflows.Catalog().Lookup(step.ActionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownAction, step.ActionID)
	}
	p, err := e.providers.Lookup(spec.Provider)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	values := maps.Clone(r.exec.Params)
	if values == nil {
		values = map[string]string{}
	}
	maps.Copy(values, r.outputs)
	values[serialValue] = string(r.result.DeviceSerial)
	r.mu.Unlock()

	for _, in := range step.Inputs {
		if _, ok := values[in]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, in)
		}
	}
	args, err := workflow.RenderArgs(spec.Args, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingInput, err)
	}
	return &action{spec: spec, provider: p, args: args}, nil
}

// dispatchWithRetry calls the provider up to the step's attempt budget,
// waiting out each backoff. Panics and cancellation end the step at once
func (r *Run) dispatchWithRetry(
	step *api.WorkflowStep, sr *api.StepResult, act *action,
) error {
	attempts := step.Retry.Attempts()
	for attempt := 1; ; attempt++ {
		r.setAttempts(sr, attempt)
		res, err := r.dispatch(step, act, attempt)
		if err == nil {
			r.captureOutputs(step, sr, res)
			return nil
		}
		if res != nil {
			r.setOutput(sr, res.Stdout)
		}
		if errors.Is(err, ErrActionPanicked) || r.ctx.Err() != nil ||
			attempt >= attempts {
			return err
		}

		delay := step.Retry.Backoff(attempt - 1)
		slog.Info("Retrying step",
			log.ExecutionID(r.result.ID),
			log.StepID(step.ID),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			log.Error(err))
		r.emit(api.EventStepRetrying, step, err.Error(), attempt)
		if err := sleep(r.ctx, delay); err != nil {
			return err
		}
	}
}

// dispatch makes one provider call. A provider panic is recovered and
// reported as ErrActionPanicked
func (r *Run) dispatch(
	step *api.WorkflowStep, act *action, attempt int,
) (res *api.ActionResult, err error) {
	e := r.engine
	ctx, span := e.tracer.Start(r.ctx, "step.dispatch",
		trace.WithAttributes(
			attribute.String("step.id", string(step.ID)),
			attribute.String("action.id", string(step.ActionID)),
			attribute.String("action.provider", act.spec.Provider),
			attribute.Int("step.attempt", attempt),
		),
	)
	defer span.End()

	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.TimeoutDuration())
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrActionPanicked, rec)
			slog.Error("Action panicked",
				log.ExecutionID(r.result.ID),
				log.StepID(step.ID),
				slog.Any("panic", rec))
		}
		e.metrics.StepAttempt(
			string(step.ActionID), attemptOutcome(err), time.Since(start),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	res, err = act.provider.Execute(
		ctx, r.result.DeviceSerial, act.spec.Command, act.args,
	)
	switch {
	case err != nil && r.ctx.Err() == nil &&
		errors.Is(ctx.Err(), context.DeadlineExceeded) &&
		!errors.Is(err, provider.ErrActionTimeout):
		err = fmt.Errorf("%w: %s after %s",
			provider.ErrActionTimeout, step.ActionID, step.TimeoutDuration())
	case err == nil && res == nil:
		err = fmt.Errorf("%w: empty result", provider.ErrActionFailed)
	case err == nil && !res.Success:
		err = fmt.Errorf("%w: %s", provider.ErrActionFailed, res.Failure())
	}
	return res, err
}

func (r *Run) captureOutputs(
	step *api.WorkflowStep, sr *api.StepResult, res *api.ActionResult,
) {
	value := res.Stdout
	if value == "" {
		value = res.Stderr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sr.Output = res.Stdout
	if len(step.Outputs) == 0 {
		return
	}
	sr.Outputs = make(map[string]string, len(step.Outputs))
	for _, name := range step.Outputs {
		v, ok := res.Outputs[name]
		if !ok {
			v = value
		}
		sr.Outputs[name] = v
		r.outputs[name] = v
	}
}

func (r *Run) setAttempts(sr *api.StepResult, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr.Attempts = n
}

func (r *Run) setOutput(sr *api.StepResult, out string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr.Output = out
}

func attemptOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, ErrActionPanicked):
		return observability.OutcomePanic
	case errors.Is(err, provider.ErrActionTimeout):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeFailure
	}
}

// sleep waits for d or until ctx ends
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
