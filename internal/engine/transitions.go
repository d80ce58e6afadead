package engine

import (
	"log/slog"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

var (
	executionTransitions = util.StateTransitions[api.ExecutionStatus]{
		api.ExecutionPending: util.SetOf(
			api.ExecutionRunning,
			api.ExecutionFailed,
		),
		api.ExecutionRunning: util.SetOf(
			api.ExecutionCompleted,
			api.ExecutionFailed,
			api.ExecutionCancelled,
		),
		api.ExecutionCompleted: {},
		api.ExecutionFailed:    {},
		api.ExecutionCancelled: {},
	}

	stepTransitions = util.StateTransitions[api.StepStatus]{
		api.StepPending: util.SetOf(
			api.StepRunning,
			api.StepSkipped,
		),
		api.StepRunning: util.SetOf(
			api.StepCompleted,
			api.StepFailed,
		),
		api.StepCompleted: {},
		api.StepFailed:    {},
		api.StepSkipped:   {},
	}

	terminalEvent = map[api.ExecutionStatus]api.EventType{
		api.ExecutionCompleted: api.EventExecutionCompleted,
		api.ExecutionFailed:    api.EventExecutionFailed,
		api.ExecutionCancelled: api.EventExecutionCancelled,
	}
)

// setStatus moves the execution to a new status. Callers hold r.mu
func (r *Run) setStatus(to api.ExecutionStatus) bool {
	from := r.result.Status
	if !executionTransitions.CanTransition(from, to) {
		slog.Error("Invalid execution transition",
			log.ExecutionID(r.result.ID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			log.Error(ErrInvalidTransition))
		return false
	}
	r.result.Status = to
	return true
}

// setStepStatus moves a step to a new status. Callers hold r.mu
func (r *Run) setStepStatus(s *api.StepResult, to api.StepStatus) bool {
	if !stepTransitions.CanTransition(s.Status, to) {
		if !stepTransitions.IsTerminal(s.Status) {
			slog.Error("Invalid step transition",
				log.ExecutionID(r.result.ID),
				log.StepID(s.ID),
				slog.String("from", string(s.Status)),
				slog.String("to", string(to)),
				log.Error(ErrInvalidTransition))
		}
		return false
	}
	s.Status = to
	return true
}
