package engine

import (
	"log/slog"
	"slices"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/policy"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// authorize evaluates the workflow and step gates and records one audit
// entry per gate. A blocked run is marked authorization_required
func (r *Run) authorize() bool {
	e := r.engine
	eval := e.policy.Evaluate(&policy.Request{
		Context: r.exec,
		Gates:   r.def.Gates(),
		Tools:   r.tools(),
	})

	for _, g := range eval.Results {
		r.record(api.AuditRecord{
			ActionType: api.AuditGateDecision,
			ActionID:   string(g.GateID),
			ActionName: string(g.GateType),
			Args: map[string]string{
				"status":   string(g.Status),
				"workflow": string(r.def.ID),
			},
			Success: !g.Blocked,
			Error:   g.Reason,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Gates = eval.Results
	if !eval.Blocked {
		return true
	}

	for _, g := range eval.Unmet() {
		if g.Blocked {
			e.metrics.GateDenied(string(g.GateID))
		}
	}
	r.result.Kind = api.ResultAuthorizationRequired
	r.result.Error = api.AuthorizationRequired
	r.result.AuthorizationPrompt = e.policy.Prompt(eval, r.def)

	slog.Info("Execution requires authorization",
		log.ExecutionID(r.result.ID),
		log.WorkflowID(r.def.ID),
		slog.String("reason", eval.BlockingReason))
	return false
}

// acquire takes the device lock for the workflow. The error return is a
// lock backend failure; a held lock marks the run device_locked
func (r *Run) acquire() (bool, error) {
	e := r.engine
	serial := r.result.DeviceSerial
	res, err := e.locks.Acquire(r.ctx, serial, string(r.def.ID))
	if err != nil {
		slog.Error("Device lock unavailable",
			log.ExecutionID(r.result.ID),
			log.Serial(serial),
			log.Error(err))
		return false, err
	}

	r.record(api.AuditRecord{
		ActionType: api.AuditLockDecision,
		ActionID:   string(serial),
		ActionName: string(r.def.ID),
		Args: map[string]string{
			"lockedBy": res.LockedBy,
		},
		Success: res.Acquired,
		Error:   res.Reason,
	})
	if res.Acquired {
		return true, nil
	}

	e.metrics.LockDenied(string(r.def.ID))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Kind = api.ResultDeviceLocked
	r.result.Error = res.Reason
	r.result.LockedBy = res.LockedBy
	r.result.RetryAfter = lock.RetryAfterSeconds(e.locks.Timeout())

	slog.Info("Device locked",
		log.ExecutionID(r.result.ID),
		log.Serial(serial),
		slog.String("locked_by", res.LockedBy))
	return false, nil
}

// tools lists the providers the workflow's dispatching steps would call
func (r *Run) tools() []string {
	catalog := r.engine.workflows.Catalog()
	var res []string
	for _, s := range r.def.Steps {
		if !s.Dispatches() {
			continue
		}
		spec, ok := catalog.Lookup(s.ActionID)
		if !ok || slices.Contains(res, spec.Provider) {
			continue
		}
		res = append(res, spec.Provider)
	}
	return res
}
