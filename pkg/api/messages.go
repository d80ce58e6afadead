package api

type (
	// StartJobRequest asks the executor to run a workflow against a device
	StartJobRequest struct {
		Context      *ExecutionContext `json:"context,omitempty"`
		WorkflowID   WorkflowID        `json:"workflowId"`
		DeviceSerial Serial            `json:"deviceSerial"`
		DeviceName   string            `json:"deviceName,omitempty"`
		Wait         bool              `json:"wait,omitempty"`
	}

	// JobStartedResponse is returned when an execution has been accepted
	JobStartedResponse struct {
		Message     string      `json:"message"`
		ExecutionID ExecutionID `json:"executionId"`
	}

	// JobsListResponse lists known executions
	JobsListResponse struct {
		Jobs  []*ExecutionResult `json:"jobs"`
		Count int                `json:"count"`
	}

	// WorkflowsListResponse lists the loaded workflow definitions
	WorkflowsListResponse struct {
		Workflows []*WorkflowDefinition `json:"workflows"`
		Count     int                   `json:"count"`
	}

	// FlashStartRequest registers an externally driven flash job
	FlashStartRequest struct {
		JobID        JobID      `json:"jobId,omitempty"`
		DeviceSerial Serial     `json:"deviceSerial"`
		DeviceName   string     `json:"deviceName,omitempty"`
		WorkflowID   WorkflowID `json:"workflowId,omitempty"`
		TotalBytes   int64      `json:"totalBytes"`
	}

	// FlashFailRequest reports that an external flash job failed
	FlashFailRequest struct {
		Error string `json:"error"`
	}

	// FlashJobsResponse lists progress-tracked jobs
	FlashJobsResponse struct {
		Jobs  []*Job `json:"jobs"`
		Count int    `json:"count"`
	}

	// LocksListResponse lists the live device locks
	LocksListResponse struct {
		Locks []*DeviceLock `json:"locks"`
		Count int           `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service     string `json:"service"`
		Version     string `json:"version"`
		Status      string `json:"status"`
		ActiveJobs  int    `json:"activeJobs"`
		Subscribers int    `json:"subscribers"`
	}

	// ClientMessage is the only shape a progress client may send
	ClientMessage struct {
		Type MessageType `json:"type"`
	}

	// PongMessage answers a client ping
	PongMessage struct {
		Type      MessageType `json:"type"`
		Timestamp int64       `json:"timestamp"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Result *ExecutionResult `json:"result,omitempty"`
		Error  string           `json:"error"`
		Status int              `json:"status,omitempty"`
	}
)
