package api

import "time"

type (
	// AuditRecord is an append-only entry describing one decision or action
	AuditRecord struct {
		Timestamp  time.Time         `json:"timestamp"`
		Args       map[string]string `json:"args,omitempty"`
		CaseID     string            `json:"caseId,omitempty"`
		JobID      JobID             `json:"jobId"`
		Actor      string            `json:"actor"`
		ActionType string            `json:"actionType"`
		ActionID   string            `json:"actionId"`
		ActionName string            `json:"actionName"`
		Error      string            `json:"error,omitempty"`
		Success    bool              `json:"success"`
	}
)

const (
	AuditGateDecision     = "gate_decision"
	AuditLockDecision     = "lock_decision"
	AuditStepOutcome      = "pathway_execute"
	AuditExecutionOutcome = "execution_result"
	AuditRollback         = "execution_rolled_back"
)
