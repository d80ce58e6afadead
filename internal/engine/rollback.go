package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// rollback runs the definition's undo steps after a critical failure. The
// caller still holds the device lock. Each undo step gets one attempt, and
// the first failure skips the rest
func (r *Run) rollback(failed api.StepID) {
	plan := r.rollbackPlan()
	if len(plan) == 0 {
		return
	}

	rb := &api.RollbackResult{
		Steps: make([]*api.StepResult, len(plan)),
	}
	for i, s := range plan {
		rb.Steps[i] = api.NewStepResult(s)
	}
	r.mu.Lock()
	r.result.Rollback = rb
	r.mu.Unlock()

	slog.Info("Rolling back execution",
		log.ExecutionID(r.result.ID),
		log.WorkflowID(r.def.ID),
		slog.Int("steps", len(plan)))

	var failure error
	for i, step := range plan {
		sr := rb.Steps[i]
		if failure != nil {
			r.mu.Lock()
			r.setStepStatus(sr, api.StepSkipped)
			r.mu.Unlock()
			continue
		}
		if err := r.undoStep(step, sr); err != nil {
			failure = fmt.Errorf("rollback step %s failed: %w", step.Name, err)
		}
	}

	ids := make([]string, len(plan))
	for i, s := range plan {
		ids[i] = string(s.ID)
	}
	r.mu.Lock()
	rb.Success = failure == nil
	if failure != nil {
		rb.Error = failure.Error()
	}
	r.mu.Unlock()

	rec := api.AuditRecord{
		ActionType: api.AuditRollback,
		ActionID:   string(r.def.ID),
		ActionName: r.def.Name,
		Args: map[string]string{
			"steps":      strings.Join(ids, ","),
			"failedStep": string(failed),
		},
		Success: failure == nil,
	}
	if failure != nil {
		rec.Error = failure.Error()
		slog.Error("Rollback failed",
			log.ExecutionID(r.result.ID),
			log.Error(failure))
	} else {
		slog.Info("Rollback completed",
			log.ExecutionID(r.result.ID))
	}
	r.record(rec)
}

// rollbackPlan picks the undo steps for a failed run. When steps name their
// own undo, the completed ones are undone newest first. Otherwise every
// rollback step runs in definition order
func (r *Run) rollbackPlan() []*api.WorkflowStep {
	if !r.def.RollbackSupported || len(r.def.RollbackSteps) == 0 {
		return nil
	}

	mapped := false
	for _, s := range r.def.Steps {
		if s.RollbackStepID != "" {
			mapped = true
			break
		}
	}
	if !mapped {
		return r.def.RollbackSteps
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*api.WorkflowStep
	for i := len(r.def.Steps) - 1; i >= 0; i-- {
		s := r.def.Steps[i]
		if s.RollbackStepID == "" ||
			r.result.Steps[i].Status != api.StepCompleted {
			continue
		}
		if undo, ok := r.def.RollbackStep(s.RollbackStepID); ok {
			res = append(res, undo)
		}
	}
	return res
}

func (r *Run) undoStep(step *api.WorkflowStep, sr *api.StepResult) error {
	r.mu.Lock()
	r.setStepStatus(sr, api.StepRunning)
	sr.StartedAt = r.engine.clock()
	sr.Attempts = 1
	r.mu.Unlock()

	var err error
	switch step.ActionType {
	case api.ActionWait:
		err = sleep(r.ctx, step.TimeoutDuration())
	case api.ActionLog:
		r.setOutput(sr, step.Name)
	default:
		var act *action
		if act, err = r.resolve(step); err == nil {
			var res *api.ActionResult
			res, err = r.dispatch(step, act, 1)
			if err == nil {
				r.captureOutputs(step, sr, res)
			} else if res != nil {
				r.setOutput(sr, res.Stdout)
			}
		}
	}

	r.mu.Lock()
	sr.CompletedAt = r.engine.clock()
	if err == nil {
		r.setStepStatus(sr, api.StepCompleted)
	} else {
		r.setStepStatus(sr, api.StepFailed)
		sr.Error = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		slog.Warn("Rollback step failed",
			log.ExecutionID(r.result.ID),
			log.StepID(step.ID),
			log.Error(err))
	}
	return err
}
