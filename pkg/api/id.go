package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	// WorkflowID is a unique identifier for a workflow definition
	WorkflowID string

	// StepID identifies a step within a workflow definition
	StepID string

	// ActionID identifies a catalog action that a step dispatches
	ActionID string

	// ExecutionID is a unique identifier for one workflow execution
	ExecutionID string

	// JobID identifies a progress-tracked job
	JobID string

	// GateID identifies a policy gate
	GateID string

	// Serial is the serial number of a physical device
	Serial string
)

// NewExecutionID returns an execution identifier that is never reused
// within or across process lifetimes
func NewExecutionID() ExecutionID {
	return ExecutionID(newTimedID("exec", 8))
}

// NewJobID returns a fresh identifier for an externally reported job
func NewJobID() JobID {
	return JobID(newTimedID("job", 9))
}

func newTimedID(prefix string, size int) string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), rnd[:size])
}
