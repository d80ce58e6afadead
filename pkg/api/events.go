package api

type (
	// EventType names an executor lifecycle event
	EventType string

	// ExecutionEvent is emitted by the executor as an execution progresses
	ExecutionEvent struct {
		Type           EventType   `json:"type"`
		ExecutionID    ExecutionID `json:"executionId"`
		WorkflowID     WorkflowID  `json:"workflowId"`
		DeviceSerial   Serial      `json:"deviceSerial"`
		DeviceName     string      `json:"deviceName,omitempty"`
		StepID         StepID      `json:"stepId,omitempty"`
		StepName       string      `json:"stepName,omitempty"`
		Error          string      `json:"error,omitempty"`
		Attempt        int         `json:"attempt,omitempty"`
		CompletedSteps int         `json:"completedSteps"`
		TotalSteps     int         `json:"totalSteps"`
		Timestamp      int64       `json:"timestamp"`
	}
)

const (
	EventExecutionStarted   EventType = "execution_started"
	EventStepStarted        EventType = "step_started"
	EventStepRetrying       EventType = "step_retrying"
	EventStepCompleted      EventType = "step_completed"
	EventStepFailed         EventType = "step_failed"
	EventExecutionPaused    EventType = "execution_paused"
	EventExecutionResumed   EventType = "execution_resumed"
	EventExecutionCompleted EventType = "execution_completed"
	EventExecutionFailed    EventType = "execution_failed"
	EventExecutionCancelled EventType = "execution_cancelled"
)

// IsTerminal reports whether the event ends an execution
func (t EventType) IsTerminal() bool {
	return t == EventExecutionCompleted || t == EventExecutionFailed ||
		t == EventExecutionCancelled
}
