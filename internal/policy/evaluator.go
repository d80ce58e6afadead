package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type (
	// Evaluator decides whether requested gates are satisfied
	Evaluator interface {
		Evaluate(req *Request) *api.PolicyEvaluation
		Prompt(
			eval *api.PolicyEvaluation, def *api.WorkflowDefinition,
		) *api.AuthorizationPrompt
	}

	// Request names the gates to check and what the caller supplied
	Request struct {
		Context *api.ExecutionContext
		Gates   []api.GateID
		Tools   []string
	}

	checkFunc func(*api.Gate, *Request) (bool, string)
)

var checks = map[api.GateType]checkFunc{
	api.GateOwnershipAttestation: checkOwnership,
	api.GateDestructiveConfirm:   checkDestructive,
	api.GateBlockedIntent:        checkIntent,
	api.GateToolAllowlist:        checkTools,
	api.GateDeviceAuthorization:  checkDevice,
	api.GateEvidenceCompleteness: checkEvidence,
}

var _ Evaluator = (*Pack)(nil)

// Evaluate checks each requested gate in order. A gate that fails blocks
// the request when it is required; unknown gates always block
func (p *Pack) Evaluate(req *Request) *api.PolicyEvaluation {
	res := &api.PolicyEvaluation{}
	for _, id := range req.Gates {
		r := p.evaluateGate(id, req)
		res.Results = append(res.Results, r)
		if r.Blocked && !res.Blocked {
			res.Blocked = true
			res.BlockingReason = r.Reason
		}
	}
	return res
}

// Prompt describes the blocked gates of an evaluation for the operator
func (p *Pack) Prompt(
	eval *api.PolicyEvaluation, def *api.WorkflowDefinition,
) *api.AuthorizationPrompt {
	msg := def.AuthorizationPrompt
	if msg == "" {
		msg = fmt.Sprintf("%s requires authorization", def.Name)
	}
	res := &api.AuthorizationPrompt{
		WorkflowID: def.ID,
		Workflow:   def.Name,
		Message:    msg,
		RiskLevel:  def.RiskLevel,
		Gates:      []*api.PromptEntry{},
	}
	for _, r := range eval.Results {
		if !r.Blocked {
			continue
		}
		entry := &api.PromptEntry{
			GateID: r.GateID,
			Name:   string(r.GateID),
			Type:   r.GateType,
			Reason: r.Reason,
		}
		if g, ok := p.gates[r.GateID]; ok {
			entry.Name = g.Name
			entry.Message = g.Message
			entry.TypedPhrase = g.Requirements.TypedPhrase
			entry.CheckboxText = g.Requirements.CheckboxText
		}
		res.Gates = append(res.Gates, entry)
	}
	return res
}

func (p *Pack) evaluateGate(id api.GateID, req *Request) *api.GateResult {
	g, ok := p.gates[id]
	if !ok {
		return &api.GateResult{
			GateID:   id,
			GateType: api.GateUnknown,
			Status:   api.GateFailed,
			Reason:   fmt.Sprintf("unknown gate: %s", id),
			Blocked:  true,
		}
	}

	check, ok := checks[g.Type]
	if !ok {
		return &api.GateResult{
			GateID:   id,
			GateType: g.Type,
			Status:   api.GateFailed,
			Reason:   fmt.Sprintf("unsupported gate type: %s", g.Type),
			Blocked:  true,
		}
	}

	passed, reason := check(g, req)
	res := &api.GateResult{
		GateID:   id,
		GateType: g.Type,
		Passed:   passed,
		Reason:   reason,
	}
	switch {
	case passed:
		res.Status = api.GatePassed
	case g.Required:
		res.Status = api.GateFailed
		res.Blocked = true
	default:
		res.Status = api.GateWarning
	}
	return res
}

func authorization(req *Request) *api.Authorization {
	if req.Context == nil {
		return nil
	}
	return req.Context.Authorization
}

func checkOwnership(g *api.Gate, req *Request) (bool, string) {
	auth := authorization(req)
	if auth == nil || !auth.OwnershipAttested {
		return false, "ownership attestation required"
	}
	phrase := g.Requirements.TypedPhrase
	if phrase != "" && !auth.HasPhrase(phrase) {
		return false, fmt.Sprintf("type %q to attest ownership", phrase)
	}
	return true, ""
}

func checkDestructive(g *api.Gate, req *Request) (bool, string) {
	auth := authorization(req)
	phrase := g.Requirements.TypedPhrase
	if phrase == "" {
		if auth == nil || !auth.Confirmed {
			return false, "destructive operation must be confirmed"
		}
		return true, ""
	}
	if !auth.HasPhrase(phrase) {
		return false, fmt.Sprintf("type %q to confirm", phrase)
	}
	return true, ""
}

func checkIntent(g *api.Gate, req *Request) (bool, string) {
	if req.Context == nil || req.Context.Intent == "" {
		return true, ""
	}
	intent := strings.ToLower(req.Context.Intent)
	for _, kw := range g.Requirements.Keywords {
		if strings.Contains(intent, strings.ToLower(kw)) {
			return false, fmt.Sprintf("request matches blocked intent: %s", kw)
		}
	}
	return true, ""
}

func checkTools(g *api.Gate, req *Request) (bool, string) {
	allowed := g.Requirements.AllowedTools
	for _, tool := range req.Tools {
		if !slices.Contains(allowed, tool) {
			return false, fmt.Sprintf("tool not allowed: %s", tool)
		}
	}
	return true, ""
}

func checkDevice(_ *api.Gate, req *Request) (bool, string) {
	auth := authorization(req)
	if auth == nil || !auth.DeviceAuthorized {
		return false, "device has not authorized this host"
	}
	return true, ""
}

func checkEvidence(g *api.Gate, req *Request) (bool, string) {
	score := 0
	if auth := authorization(req); auth != nil {
		score = auth.EvidenceScore
	}
	if score < g.Requirements.MinimumScore {
		return false, fmt.Sprintf("evidence score %d below minimum %d",
			score, g.Requirements.MinimumScore)
	}
	return true, ""
}
