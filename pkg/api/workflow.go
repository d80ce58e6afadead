package api

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

type (
	// Platform names the device family a workflow targets
	Platform string

	// RiskLevel classifies how much damage a workflow can do to a device
	RiskLevel string

	// ActionType selects how the executor treats a step
	ActionType string

	// WorkflowDefinition is a named, versioned, ordered list of steps. It is
	// immutable once loaded into a registry
	WorkflowDefinition struct {
		ID                  WorkflowID      `json:"id"`
		Name                string          `json:"name"`
		Description         string          `json:"description,omitempty"`
		Version             string          `json:"version"`
		Category            string          `json:"category"`
		Platform            Platform        `json:"platform,omitempty"`
		RiskLevel           RiskLevel       `json:"riskLevel,omitempty"`
		AuthorizationPrompt string          `json:"authorizationPrompt,omitempty"`
		RequiredGates       []GateID        `json:"requiredGates,omitempty"`
		Steps               []*WorkflowStep `json:"steps"`
		RollbackSupported   bool            `json:"rollbackSupported,omitempty"`
		RollbackSteps       []*WorkflowStep `json:"rollbackSteps,omitempty"`
	}

	// WorkflowStep is one action within a workflow definition
	WorkflowStep struct {
		ID            StepID       `json:"id"`
		Name          string       `json:"name"`
		ActionID      ActionID     `json:"actionId"`
		ActionType    ActionType   `json:"actionType"`
		Retry         *RetryPolicy `json:"retry,omitempty"`
		RequiredGates []GateID     `json:"requiredGates,omitempty"`
		Timeout       int64        `json:"timeout,omitempty"`
		Inputs        []string     `json:"inputs,omitempty"`
		Outputs       []string     `json:"outputs,omitempty"`
		NonCritical   bool         `json:"nonCritical,omitempty"`

		// RollbackStepID names the entry in RollbackSteps that undoes this
		// step once it has completed
		RollbackStepID StepID `json:"rollbackStepId,omitempty"`
	}

	// RetryPolicy bounds re-dispatch of a failed step. BackoffMs holds the
	// delay before each retry, so its length must equal Max
	RetryPolicy struct {
		Max       int     `json:"max"`
		BackoffMs []int64 `json:"backoffMs"`
	}
)

const (
	PlatformAndroid   Platform = "android"
	PlatformIOS       Platform = "ios"
	PlatformUniversal Platform = "universal"

	RiskLow         RiskLevel = "low"
	RiskMedium      RiskLevel = "medium"
	RiskHigh        RiskLevel = "high"
	RiskDestructive RiskLevel = "destructive"

	// ActionCommand dispatches a catalog action to its provider
	ActionCommand ActionType = "command"

	// ActionCheck dispatches like a command; it reads device state only
	ActionCheck ActionType = "check"

	// ActionWait sleeps for the step timeout without dispatching
	ActionWait ActionType = "wait"

	// ActionLog records a log entry without dispatching
	ActionLog ActionType = "log"
)

// Millisecond multiples for manifest and configuration durations
const (
	Second int64 = 1000
	Minute       = Second * 60
	Hour         = Minute * 60
)

var (
	ErrWorkflowIDEmpty      = errors.New("workflow ID empty")
	ErrWorkflowNameEmpty    = errors.New("workflow name empty")
	ErrWorkflowNoSteps      = errors.New("workflow has no steps")
	ErrStepIDEmpty          = errors.New("step ID empty")
	ErrStepNameEmpty        = errors.New("step name empty")
	ErrDuplicateStepID      = errors.New("duplicate step ID")
	ErrActionIDEmpty        = errors.New("action ID empty")
	ErrInvalidActionType    = errors.New("invalid action type")
	ErrInvalidPlatform      = errors.New("invalid platform")
	ErrInvalidRiskLevel     = errors.New("invalid risk level")
	ErrInvalidRetryPolicy   = errors.New("invalid retry policy")
	ErrNegativeBackoff      = errors.New("backoffMs cannot be negative")
	ErrNegativeTimeout      = errors.New("timeout cannot be negative")
	ErrWaitTimeoutRequired  = errors.New("wait step requires a timeout")
	ErrEmptyGateID          = errors.New("gate ID empty")
	ErrEmptyInputOutputName = errors.New("input or output name empty")
	ErrUnknownRollbackStep  = errors.New("unknown rollback step")
)

var (
	validPlatforms = util.SetOf(
		PlatformAndroid, PlatformIOS, PlatformUniversal,
	)

	validRiskLevels = util.SetOf(
		RiskLow, RiskMedium, RiskHigh, RiskDestructive,
	)

	validActionTypes = util.SetOf(
		ActionCommand, ActionCheck, ActionWait, ActionLog,
	)
)

// Validate checks the structural rules of a definition. Catalog and gate
// references are checked by the loader, which knows both tables
func (w *WorkflowDefinition) Validate() error {
	if w.ID == "" {
		return ErrWorkflowIDEmpty
	}
	if w.Name == "" {
		return fmt.Errorf("%w: %s", ErrWorkflowNameEmpty, w.ID)
	}
	if w.Platform != "" && !validPlatforms.Contains(w.Platform) {
		return fmt.Errorf("%w: %s", ErrInvalidPlatform, w.Platform)
	}
	if w.RiskLevel != "" && !validRiskLevels.Contains(w.RiskLevel) {
		return fmt.Errorf("%w: %s", ErrInvalidRiskLevel, w.RiskLevel)
	}
	if err := validateGates(w.RequiredGates); err != nil {
		return err
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowNoSteps, w.ID)
	}

	seen := util.Set[StepID]{}
	for _, s := range w.Steps {
		if s == nil {
			return fmt.Errorf("%w: %s", ErrStepIDEmpty, w.ID)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", w.ID, err)
		}
		if seen.Contains(s.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, s.ID)
		}
		seen.Add(s.ID)
	}

	undo := util.Set[StepID]{}
	for _, s := range w.RollbackSteps {
		if s == nil {
			return fmt.Errorf("%w: %s", ErrStepIDEmpty, w.ID)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("workflow %s rollback: %w", w.ID, err)
		}
		if seen.Contains(s.ID) || undo.Contains(s.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, s.ID)
		}
		undo.Add(s.ID)
	}
	for _, s := range w.Steps {
		if s.RollbackStepID != "" && !undo.Contains(s.RollbackStepID) {
			return fmt.Errorf("%w: %s references %s",
				ErrUnknownRollbackStep, s.ID, s.RollbackStepID)
		}
	}
	return nil
}

// RollbackStep returns the rollback step with the given ID
func (w *WorkflowDefinition) RollbackStep(id StepID) (*WorkflowStep, bool) {
	for _, s := range w.RollbackSteps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Gates returns the union of workflow and step gates, workflow gates first,
// each appearing once. Rollback steps count, since admission is the only
// point where gates are evaluated
func (w *WorkflowDefinition) Gates() []GateID {
	seen := util.Set[GateID]{}
	var res []GateID
	add := func(ids []GateID) {
		for _, id := range ids {
			if !seen.Contains(id) {
				seen.Add(id)
				res = append(res, id)
			}
		}
	}
	add(w.RequiredGates)
	for _, s := range w.Steps {
		add(s.RequiredGates)
	}
	for _, s := range w.RollbackSteps {
		add(s.RequiredGates)
	}
	return res
}

// Step returns the step with the given ID
func (w *WorkflowDefinition) Step(id StepID) (*WorkflowStep, bool) {
	for _, s := range w.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the definition
func (w *WorkflowDefinition) Clone() *WorkflowDefinition {
	res := *w
	res.RequiredGates = slices.Clone(w.RequiredGates)
	res.Steps = make([]*WorkflowStep, len(w.Steps))
	for i, s := range w.Steps {
		res.Steps[i] = s.Clone()
	}
	if w.RollbackSteps != nil {
		res.RollbackSteps = make([]*WorkflowStep, len(w.RollbackSteps))
		for i, s := range w.RollbackSteps {
			res.RollbackSteps[i] = s.Clone()
		}
	}
	return &res
}

// Validate checks the structural rules of a single step
func (s *WorkflowStep) Validate() error {
	if s.ID == "" {
		return ErrStepIDEmpty
	}
	if s.Name == "" {
		return fmt.Errorf("%w: %s", ErrStepNameEmpty, s.ID)
	}
	if s.ActionID == "" {
		return fmt.Errorf("%w: %s", ErrActionIDEmpty, s.ID)
	}
	if !validActionTypes.Contains(s.ActionType) {
		return fmt.Errorf("%w: %s", ErrInvalidActionType, s.ActionType)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeTimeout, s.ID)
	}
	if s.ActionType == ActionWait && s.Timeout == 0 {
		return fmt.Errorf("%w: %s", ErrWaitTimeoutRequired, s.ID)
	}
	if err := validateGates(s.RequiredGates); err != nil {
		return err
	}
	for _, name := range append(slices.Clone(s.Inputs), s.Outputs...) {
		if name == "" {
			return fmt.Errorf("%w: %s", ErrEmptyInputOutputName, s.ID)
		}
	}
	if s.Retry != nil {
		if err := s.Retry.Validate(); err != nil {
			return fmt.Errorf("step %s: %w", s.ID, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the step
func (s *WorkflowStep) Clone() *WorkflowStep {
	res := *s
	res.RequiredGates = slices.Clone(s.RequiredGates)
	res.Inputs = slices.Clone(s.Inputs)
	res.Outputs = slices.Clone(s.Outputs)
	if s.Retry != nil {
		r := *s.Retry
		r.BackoffMs = slices.Clone(s.Retry.BackoffMs)
		res.Retry = &r
	}
	return &res
}

// TimeoutDuration returns the step timeout as a duration
func (s *WorkflowStep) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}

// Dispatches reports whether the step calls out to a provider
func (s *WorkflowStep) Dispatches() bool {
	return s.ActionType == ActionCommand || s.ActionType == ActionCheck
}

// Validate checks that the backoff list has exactly one entry per retry.
// A mismatch is rejected rather than padded or truncated
func (r *RetryPolicy) Validate() error {
	if r.Max < 0 {
		return fmt.Errorf("%w: max %d", ErrInvalidRetryPolicy, r.Max)
	}
	if len(r.BackoffMs) != r.Max {
		return fmt.Errorf("%w: max %d with %d backoff entries",
			ErrInvalidRetryPolicy, r.Max, len(r.BackoffMs))
	}
	for _, b := range r.BackoffMs {
		if b < 0 {
			return ErrNegativeBackoff
		}
	}
	return nil
}

// Attempts returns the total number of dispatches allowed
func (r *RetryPolicy) Attempts() int {
	if r == nil {
		return 1
	}
	return r.Max + 1
}

// Backoff returns the delay before retry n, counting from zero
func (r *RetryPolicy) Backoff(n int) time.Duration {
	if r == nil || n < 0 || n >= len(r.BackoffMs) {
		return 0
	}
	return time.Duration(r.BackoffMs[n]) * time.Millisecond
}

func validateGates(ids []GateID) error {
	for _, id := range ids {
		if id == "" {
			return ErrEmptyGateID
		}
	}
	return nil
}
