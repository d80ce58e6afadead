package api

import "time"

type (
	// JobStatus represents the state of a progress-tracked job
	JobStatus string

	// MessageType names a progress protocol message
	MessageType string

	// Job is a long-running, progress-reporting unit of work
	Job struct {
		StartedAt              time.Time  `json:"startedAt"`
		UpdatedAt              time.Time  `json:"updatedAt"`
		CompletedAt            time.Time  `json:"completedAt,omitzero"`
		ID                     JobID      `json:"jobId"`
		DeviceSerial           Serial     `json:"deviceSerial"`
		DeviceName             string     `json:"deviceName,omitempty"`
		WorkflowID             WorkflowID `json:"workflowId,omitempty"`
		Status                 JobStatus  `json:"status"`
		Stage                  string     `json:"stage,omitempty"`
		Error                  string     `json:"error,omitempty"`
		Progress               float64    `json:"progress"`
		TransferSpeed          float64    `json:"transferSpeed"`
		BytesTransferred       int64      `json:"bytesTransferred"`
		TotalBytes             int64      `json:"totalBytes"`
		EstimatedTimeRemaining int64      `json:"estimatedTimeRemaining"`
	}

	// JobUpdate carries the fields a progress report may change
	JobUpdate struct {
		Stage                  string  `json:"stage,omitempty"`
		Progress               float64 `json:"progress"`
		TransferSpeed          float64 `json:"transferSpeed,omitempty"`
		BytesTransferred       int64   `json:"bytesTransferred,omitempty"`
		EstimatedTimeRemaining int64   `json:"estimatedTimeRemaining,omitempty"`
	}

	// ProgressMessage is one message of the progress protocol. Timestamp is
	// server time in unix milliseconds
	ProgressMessage struct {
		Type                   MessageType `json:"type"`
		JobID                  JobID       `json:"jobId,omitempty"`
		DeviceID               Serial      `json:"deviceId,omitempty"`
		DeviceName             string      `json:"deviceName,omitempty"`
		Stage                  string      `json:"stage,omitempty"`
		Error                  string      `json:"error,omitempty"`
		Progress               float64     `json:"progress"`
		TransferSpeed          float64     `json:"transferSpeed"`
		BytesTransferred       int64       `json:"bytesTransferred"`
		TotalBytes             int64       `json:"totalBytes"`
		EstimatedTimeRemaining int64       `json:"estimatedTimeRemaining"`
		Timestamp              int64       `json:"timestamp"`
	}
)

const (
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"

	MessageFlashStarted   MessageType = "flash_started"
	MessageFlashProgress  MessageType = "flash_progress"
	MessageFlashPaused    MessageType = "flash_paused"
	MessageFlashResumed   MessageType = "flash_resumed"
	MessageFlashCompleted MessageType = "flash_completed"
	MessageFlashFailed    MessageType = "flash_failed"
	MessageFlashCancelled MessageType = "flash_cancelled"
	MessagePing           MessageType = "ping"
	MessagePong           MessageType = "pong"
)

// StageInitializing is the stage of a freshly started job
const StageInitializing = "Initializing"

// IsTerminal reports whether the job has finished
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Message builds a progress message of the given type from a job snapshot
func (j *Job) Message(typ MessageType, now time.Time) *ProgressMessage {
	return &ProgressMessage{
		Type:                   typ,
		JobID:                  j.ID,
		DeviceID:               j.DeviceSerial,
		DeviceName:             j.DeviceName,
		Stage:                  j.Stage,
		Error:                  j.Error,
		Progress:               j.Progress,
		TransferSpeed:          j.TransferSpeed,
		BytesTransferred:       j.BytesTransferred,
		TotalBytes:             j.TotalBytes,
		EstimatedTimeRemaining: j.EstimatedTimeRemaining,
		Timestamp:              now.UnixMilli(),
	}
}
