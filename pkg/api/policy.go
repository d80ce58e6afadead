package api

import "slices"

type (
	// GateType selects the evaluation rule a gate applies
	GateType string

	// GateStatus is the outcome of evaluating one gate
	GateStatus string

	// Gate is a named authorization precondition from the policy pack
	Gate struct {
		ID           GateID           `json:"id"`
		Name         string           `json:"name"`
		Type         GateType         `json:"type"`
		Message      string           `json:"message,omitempty"`
		Requirements GateRequirements `json:"requirements"`
		Required     bool             `json:"required"`
	}

	// GateRequirements holds the type-specific parameters of a gate
	GateRequirements struct {
		TypedPhrase  string   `json:"typedPhrase,omitempty"`
		CheckboxText string   `json:"checkboxText,omitempty"`
		Keywords     []string `json:"keywords,omitempty"`
		AllowedTools []string `json:"allowedTools,omitempty"`
		MinimumScore int      `json:"minimumScore,omitempty"`
	}

	// GateResult is the decision for one gate in one evaluation
	GateResult struct {
		GateID   GateID     `json:"gateId"`
		GateType GateType   `json:"gateType"`
		Status   GateStatus `json:"status"`
		Reason   string     `json:"reason,omitempty"`
		Passed   bool       `json:"passed"`
		Blocked  bool       `json:"blocked"`
	}

	// PolicyEvaluation aggregates every gate decision for one request
	PolicyEvaluation struct {
		Results        []*GateResult `json:"results"`
		BlockingReason string        `json:"blockingReason,omitempty"`
		Blocked        bool          `json:"blocked"`
	}

	// AuthorizationPrompt tells the operator what must be supplied before a
	// blocked workflow can run
	AuthorizationPrompt struct {
		WorkflowID WorkflowID     `json:"workflowId"`
		Workflow   string         `json:"workflow"`
		Message    string         `json:"message"`
		RiskLevel  RiskLevel      `json:"riskLevel,omitempty"`
		Gates      []*PromptEntry `json:"gates"`
	}

	// PromptEntry describes one unmet gate within a prompt
	PromptEntry struct {
		GateID       GateID   `json:"gateId"`
		Name         string   `json:"name"`
		Type         GateType `json:"type"`
		Message      string   `json:"message,omitempty"`
		TypedPhrase  string   `json:"typedPhrase,omitempty"`
		CheckboxText string   `json:"checkboxText,omitempty"`
		Reason       string   `json:"reason,omitempty"`
	}
)

const (
	GateOwnershipAttestation GateType = "ownership_attestation"
	GateDestructiveConfirm   GateType = "destructive_confirmation"
	GateBlockedIntent        GateType = "blocked_intent"
	GateToolAllowlist        GateType = "tool_allowlist"
	GateDeviceAuthorization  GateType = "device_authorization"
	GateEvidenceCompleteness GateType = "evidence_completeness"
	GateUnknown              GateType = "unknown"

	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GateWarning GateStatus = "warning"
)

// AuthorizationRequired is the error text of an execution stopped by gates
const AuthorizationRequired = "Authorization required"

// Unmet returns the results that did not pass
func (e *PolicyEvaluation) Unmet() []*GateResult {
	var res []*GateResult
	for _, r := range e.Results {
		if !r.Passed {
			res = append(res, r)
		}
	}
	return res
}

// Clone returns a deep copy of the prompt
func (p *AuthorizationPrompt) Clone() *AuthorizationPrompt {
	res := *p
	res.Gates = make([]*PromptEntry, len(p.Gates))
	for i, g := range p.Gates {
		gc := *g
		res.Gates[i] = &gc
	}
	return &res
}

// Clone returns a deep copy of the gate
func (g *Gate) Clone() *Gate {
	res := *g
	res.Requirements.Keywords = slices.Clone(g.Requirements.Keywords)
	res.Requirements.AllowedTools = slices.Clone(g.Requirements.AllowedTools)
	return &res
}
