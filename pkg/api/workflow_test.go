package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

func validWorkflow() *api.WorkflowDefinition {
	return &api.WorkflowDefinition{
		ID:            "fastboot-unlock",
		Name:          "Fastboot Unlock",
		Version:       "1.0.0",
		Category:      "bootloader",
		Platform:      api.PlatformAndroid,
		RiskLevel:     api.RiskDestructive,
		RequiredGates: []api.GateID{"GATE_A"},
		Steps: []*api.WorkflowStep{
			{
				ID:         "verify",
				Name:       "Verify Device",
				ActionID:   "android.fastboot.devices",
				ActionType: api.ActionCheck,
				Retry: &api.RetryPolicy{
					Max:       2,
					BackoffMs: []int64{100, 200},
				},
			},
			{
				ID:            "unlock",
				Name:          "Unlock Bootloader",
				ActionID:      "android.fastboot.unlock",
				ActionType:    api.ActionCommand,
				RequiredGates: []api.GateID{"GATE_B", "GATE_A"},
			},
		},
	}
}

func TestWorkflowValidate(t *testing.T) {
	assert.NoError(t, validWorkflow().Validate())

	tests := []struct {
		name string
		mod  func(*api.WorkflowDefinition)
		err  error
	}{
		{
			name: "empty_id",
			mod:  func(w *api.WorkflowDefinition) { w.ID = "" },
			err:  api.ErrWorkflowIDEmpty,
		},
		{
			name: "empty_name",
			mod:  func(w *api.WorkflowDefinition) { w.Name = "" },
			err:  api.ErrWorkflowNameEmpty,
		},
		{
			name: "no_steps",
			mod:  func(w *api.WorkflowDefinition) { w.Steps = nil },
			err:  api.ErrWorkflowNoSteps,
		},
		{
			name: "bad_platform",
			mod:  func(w *api.WorkflowDefinition) { w.Platform = "windows" },
			err:  api.ErrInvalidPlatform,
		},
		{
			name: "bad_risk",
			mod:  func(w *api.WorkflowDefinition) { w.RiskLevel = "spicy" },
			err:  api.ErrInvalidRiskLevel,
		},
		{
			name: "duplicate_step",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[1].ID = w.Steps[0].ID
			},
			err: api.ErrDuplicateStepID,
		},
		{
			name: "bad_action_type",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[0].ActionType = "teleport"
			},
			err: api.ErrInvalidActionType,
		},
		{
			name: "empty_action",
			mod:  func(w *api.WorkflowDefinition) { w.Steps[0].ActionID = "" },
			err:  api.ErrActionIDEmpty,
		},
		{
			name: "backoff_shorter_than_max",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[0].Retry.BackoffMs = []int64{100}
			},
			err: api.ErrInvalidRetryPolicy,
		},
		{
			name: "backoff_longer_than_max",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[0].Retry.BackoffMs = []int64{1, 2, 3}
			},
			err: api.ErrInvalidRetryPolicy,
		},
		{
			name: "negative_backoff",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[0].Retry.BackoffMs = []int64{1, -2}
			},
			err: api.ErrNegativeBackoff,
		},
		{
			name: "wait_without_timeout",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[0].ActionType = api.ActionWait
				w.Steps[0].Timeout = 0
			},
			err: api.ErrWaitTimeoutRequired,
		},
		{
			name: "negative_timeout",
			mod:  func(w *api.WorkflowDefinition) { w.Steps[0].Timeout = -1 },
			err:  api.ErrNegativeTimeout,
		},
		{
			name: "empty_gate",
			mod: func(w *api.WorkflowDefinition) {
				w.RequiredGates = []api.GateID{""}
			},
			err: api.ErrEmptyGateID,
		},
		{
			name: "unknown_rollback_step",
			mod: func(w *api.WorkflowDefinition) {
				w.Steps[1].RollbackStepID = "relock"
			},
			err: api.ErrUnknownRollbackStep,
		},
		{
			name: "rollback_step_reuses_id",
			mod: func(w *api.WorkflowDefinition) {
				w.RollbackSteps = []*api.WorkflowStep{{
					ID: "verify", Name: "Relock",
					ActionID: "android.fastboot.lock", ActionType: api.ActionCommand,
				}}
			},
			err: api.ErrDuplicateStepID,
		},
		{
			name: "invalid_rollback_step",
			mod: func(w *api.WorkflowDefinition) {
				w.RollbackSteps = []*api.WorkflowStep{{ID: "relock"}}
			},
			err: api.ErrStepNameEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWorkflow()
			tt.mod(w)
			assert.ErrorIs(t, w.Validate(), tt.err)
		})
	}
}

func TestWorkflowGatesUnion(t *testing.T) {
	w := validWorkflow()
	assert.Equal(t, []api.GateID{"GATE_A", "GATE_B"}, w.Gates())
}

func TestWorkflowCloneIsDeep(t *testing.T) {
	w := validWorkflow()
	c := w.Clone()

	c.Steps[0].Retry.BackoffMs[0] = 999
	c.Steps[1].RequiredGates[0] = "CHANGED"
	c.RequiredGates[0] = "CHANGED"

	assert.Equal(t, int64(100), w.Steps[0].Retry.BackoffMs[0])
	assert.Equal(t, api.GateID("GATE_B"), w.Steps[1].RequiredGates[0])
	assert.Equal(t, api.GateID("GATE_A"), w.RequiredGates[0])
}

func TestWorkflowRollback(t *testing.T) {
	w := validWorkflow()
	w.RollbackSupported = true
	w.RollbackSteps = []*api.WorkflowStep{{
		ID:            "relock",
		Name:          "Relock Bootloader",
		ActionID:      "android.fastboot.lock",
		ActionType:    api.ActionCommand,
		RequiredGates: []api.GateID{"GATE_C"},
	}}
	w.Steps[1].RollbackStepID = "relock"
	require.NoError(t, w.Validate())

	s, ok := w.RollbackStep("relock")
	require.True(t, ok)
	assert.Equal(t, "Relock Bootloader", s.Name)
	_, ok = w.RollbackStep("unlock")
	assert.False(t, ok)
	assert.Equal(t, []api.GateID{"GATE_A", "GATE_B", "GATE_C"}, w.Gates())

	c := w.Clone()
	c.RollbackSteps[0].Name = "CHANGED"
	assert.Equal(t, "Relock Bootloader", w.RollbackSteps[0].Name)
}

func TestRetryPolicy(t *testing.T) {
	var none *api.RetryPolicy
	assert.Equal(t, 1, none.Attempts())
	assert.Zero(t, none.Backoff(0))

	r := &api.RetryPolicy{Max: 3, BackoffMs: []int64{10, 20, 30}}
	require.NoError(t, r.Validate())
	assert.Equal(t, 4, r.Attempts())
	assert.Equal(t, 10*time.Millisecond, r.Backoff(0))
	assert.Equal(t, 30*time.Millisecond, r.Backoff(2))
	assert.Zero(t, r.Backoff(3))

	zero := &api.RetryPolicy{}
	assert.NoError(t, zero.Validate())
	assert.Equal(t, 1, zero.Attempts())
}

func TestStepLookup(t *testing.T) {
	w := validWorkflow()
	s, ok := w.Step("unlock")
	assert.True(t, ok)
	assert.Equal(t, "Unlock Bootloader", s.Name)
	assert.True(t, s.Dispatches())

	_, ok = w.Step("missing")
	assert.False(t, ok)
}
