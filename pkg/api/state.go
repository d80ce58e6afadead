package api

import (
	"maps"
	"time"
)

type (
	// ExecutionStatus represents the current state of a workflow execution
	ExecutionStatus string

	// StepStatus represents the current state of one step in an execution
	StepStatus string

	// ResultKind distinguishes why an execution ended the way it did
	ResultKind string

	// ExecutionResult is the observable record of one workflow execution.
	// While the execution runs it is updated in place by the executor;
	// callers only ever see copies
	ExecutionResult struct {
		StartedAt           time.Time            `json:"startedAt"`
		CompletedAt         time.Time            `json:"completedAt,omitzero"`
		AuthorizationPrompt *AuthorizationPrompt `json:"authorizationPrompt,omitempty"`
		ID                  ExecutionID          `json:"id"`
		WorkflowID          WorkflowID           `json:"workflowId"`
		DeviceSerial        Serial               `json:"deviceSerial"`
		DeviceName          string               `json:"deviceName,omitempty"`
		Status              ExecutionStatus      `json:"status"`
		Kind                ResultKind           `json:"kind,omitempty"`
		Error               string               `json:"error,omitempty"`
		FailedStep          StepID               `json:"failedStep,omitempty"`
		LockedBy            string               `json:"lockedBy,omitempty"`
		Steps               []*StepResult        `json:"steps"`
		Gates               []*GateResult        `json:"gates,omitempty"`
		CompletedSteps      int                  `json:"completedSteps"`
		TotalSteps          int                  `json:"totalSteps"`
		RetryAfter          int64                `json:"retryAfter,omitempty"`
		Success             bool                 `json:"success"`
		Paused              bool                 `json:"paused,omitempty"`
		Rollback            *RollbackResult      `json:"rollback,omitempty"`
	}

	// RollbackResult reports the undo steps run after a critical failure.
	// They are kept apart from Steps so step counts describe the workflow
	RollbackResult struct {
		Steps   []*StepResult `json:"steps"`
		Error   string        `json:"error,omitempty"`
		Success bool          `json:"success"`
	}

	// StepResult mirrors one step of the definition within an execution
	StepResult struct {
		StartedAt   time.Time         `json:"startedAt,omitzero"`
		CompletedAt time.Time         `json:"completedAt,omitzero"`
		Outputs     map[string]string `json:"outputs,omitempty"`
		ID          StepID            `json:"id"`
		Name        string            `json:"name"`
		ActionID    ActionID          `json:"actionId"`
		Status      StepStatus        `json:"status"`
		Output      string            `json:"output,omitempty"`
		Error       string            `json:"error,omitempty"`
		Attempts    int               `json:"attempts"`
	}
)

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"

	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"

	ResultCompleted             ResultKind = "completed"
	ResultFailed                ResultKind = "failed"
	ResultCancelled             ResultKind = "cancelled"
	ResultAuthorizationRequired ResultKind = "authorization_required"
	ResultDeviceLocked          ResultKind = "device_locked"
)

// NewExecutionResult creates a pending result with one pending step result
// per definition step, in definition order
func NewExecutionResult(
	id ExecutionID, def *WorkflowDefinition, serial Serial, name string,
) *ExecutionResult {
	steps := make([]*StepResult, len(def.Steps))
	for i, s := range def.Steps {
		steps[i] = NewStepResult(s)
	}
	return &ExecutionResult{
		ID:           id,
		WorkflowID:   def.ID,
		DeviceSerial: serial,
		DeviceName:   name,
		Status:       ExecutionPending,
		Steps:        steps,
		TotalSteps:   len(steps),
	}
}

// NewStepResult returns a pending result for the given step
func NewStepResult(s *WorkflowStep) *StepResult {
	return &StepResult{
		ID:       s.ID,
		Name:     s.Name,
		ActionID: s.ActionID,
		Status:   StepPending,
	}
}

// Clone returns a deep copy of the result
func (r *ExecutionResult) Clone() *ExecutionResult {
	res := *r
	res.Steps = make([]*StepResult, len(r.Steps))
	for i, s := range r.Steps {
		res.Steps[i] = s.Clone()
	}
	res.Gates = make([]*GateResult, len(r.Gates))
	for i, g := range r.Gates {
		gc := *g
		res.Gates[i] = &gc
	}
	if r.AuthorizationPrompt != nil {
		res.AuthorizationPrompt = r.AuthorizationPrompt.Clone()
	}
	if r.Rollback != nil {
		rb := *r.Rollback
		rb.Steps = make([]*StepResult, len(r.Rollback.Steps))
		for i, s := range r.Rollback.Steps {
			rb.Steps[i] = s.Clone()
		}
		res.Rollback = &rb
	}
	return &res
}

// Step returns the step result with the given ID
func (r *ExecutionResult) Step(id StepID) (*StepResult, bool) {
	for _, s := range r.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// StepsWithStatus returns the IDs of steps currently in the given status
func (r *ExecutionResult) StepsWithStatus(status StepStatus) []StepID {
	var res []StepID
	for _, s := range r.Steps {
		if s.Status == status {
			res = append(res, s.ID)
		}
	}
	return res
}

// IsTerminal reports whether the execution has finished
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed ||
		s == ExecutionCancelled
}

// Clone returns a deep copy of the step result
func (s *StepResult) Clone() *StepResult {
	res := *s
	if s.Outputs != nil {
		res.Outputs = maps.Clone(s.Outputs)
	}
	return &res
}

// Duration returns how long the step ran, or zero if it has not finished
func (s *StepResult) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

