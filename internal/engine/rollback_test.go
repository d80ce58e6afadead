package engine_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/assert"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/assert/helpers"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/engine"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

func callLines(calls []helpers.ProviderCall) []string {
	res := make([]string, len(calls))
	for i, c := range calls {
		res[i] = c.Line()
	}
	return res
}

func TestRollbackCompletedStepsInReverse(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		as := assert.New(t)
		env.Provider.SetError("commit", errDevice)

		var heldDuringUndo atomic.Bool
		env.Provider.SetHandler("undo-prepare", func(
			context.Context, helpers.ProviderCall,
		) (*api.ActionResult, error) {
			heldDuringUndo.Store(env.Locks.Held("SN123"))
			return &api.ActionResult{Success: true}, nil
		})

		r := env.Run(t, &engine.Request{
			WorkflowID: "rollback-flow", Serial: "SN123",
		})
		res := r.Result()

		as.ExecutionStatus(res, api.ExecutionFailed)
		as.Equal(api.StepID("commit"), res.FailedStep)
		as.Equal(2, res.CompletedSteps)
		as.Equal(3, res.TotalSteps)
		as.Equal([]string{
			"prepare", "apply", "commit", "undo-apply", "undo-prepare",
		}, callLines(env.Provider.Calls()))

		as.Require.NotNil(res.Rollback)
		as.True(res.Rollback.Success)
		as.Empty(res.Rollback.Error)
		as.Require.Len(res.Rollback.Steps, 2)
		as.Equal(api.StepID("undo_apply"), res.Rollback.Steps[0].ID)
		as.Equal(api.StepID("undo_prepare"), res.Rollback.Steps[1].ID)
		for _, s := range res.Rollback.Steps {
			as.Equal(api.StepCompleted, s.Status)
			as.Equal(1, s.Attempts)
		}

		as.True(heldDuringUndo.Load())
		as.False(env.Locks.Held("SN123"))
		as.Equal(1, env.Locks.Releases("SN123"))

		job := api.JobID(r.ID())
		recs := env.Audit.ByType(job, api.AuditRollback)
		as.Require.Len(recs, 1)
		as.True(recs[0].Success)
		as.Equal("undo_apply,undo_prepare", recs[0].Args["steps"])
		as.Equal("commit", recs[0].Args["failedStep"])
		as.Equal(api.DefaultActor, recs[0].Actor)
	}, helpers.WithManifest(testManifest))
}

func TestRollbackSkipsUncompletedSteps(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		as := assert.New(t)
		env.Provider.SetError("apply", errDevice)

		r := env.Run(t, &engine.Request{
			WorkflowID: "rollback-flow", Serial: "SN123",
		})
		res := r.Result()

		as.ExecutionStatus(res, api.ExecutionFailed)
		as.Equal([]string{
			"prepare", "apply", "undo-prepare",
		}, callLines(env.Provider.Calls()))
		as.Require.NotNil(res.Rollback)
		as.Require.Len(res.Rollback.Steps, 1)
		as.Equal(api.StepID("undo_prepare"), res.Rollback.Steps[0].ID)
	}, helpers.WithManifest(testManifest))
}

func TestRollbackFailureSkipsRemaining(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		as := assert.New(t)
		env.Provider.SetError("commit", errDevice)
		env.Provider.SetError("undo-apply", errDevice)

		r := env.Run(t, &engine.Request{
			WorkflowID: "rollback-flow", Serial: "SN123",
		})
		res := r.Result()

		as.ExecutionStatus(res, api.ExecutionFailed)
		as.Contains(res.Error, "Step Commit failed")
		as.Zero(env.Provider.CallCount("undo-prepare"))

		as.Require.NotNil(res.Rollback)
		as.False(res.Rollback.Success)
		as.Contains(res.Rollback.Error, "Undo Apply")
		as.Equal(api.StepFailed, res.Rollback.Steps[0].Status)
		as.Equal(api.StepSkipped, res.Rollback.Steps[1].Status)
		as.False(env.Locks.Held("SN123"))

		recs := env.Audit.ByType(api.JobID(r.ID()), api.AuditRollback)
		as.Require.Len(recs, 1)
		as.False(recs[0].Success)
		as.Contains(recs[0].Error, errDevice.Error())
	}, helpers.WithManifest(testManifest))
}

func TestRollbackRunsDeclaredSteps(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		as := assert.New(t)
		env.Provider.SetError("final", errDevice)

		r := env.Run(t, &engine.Request{
			WorkflowID: "cleanup-flow", Serial: "SN123",
		})
		res := r.Result()

		as.ExecutionStatus(res, api.ExecutionFailed)
		as.Equal(1, env.Provider.CallCount("cleanup"))
		as.Require.NotNil(res.Rollback)
		as.True(res.Rollback.Success)
		as.Require.Len(res.Rollback.Steps, 2)
		as.Equal(api.StepCompleted, res.Rollback.Steps[0].Status)
		as.Equal("Cleaned up", res.Rollback.Steps[1].Output)

		env.Events.WaitFor(t, r.ID(), api.EventExecutionFailed)
		as.Equal([]api.EventType{
			api.EventExecutionStarted,
			api.EventStepStarted, api.EventStepCompleted,
			api.EventStepStarted, api.EventStepFailed,
			api.EventExecutionFailed,
		}, env.Events.Types(r.ID()))
	}, helpers.WithManifest(testManifest))
}

func TestNoRollbackOnSuccess(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		as := assert.New(t)

		r := env.Run(t, &engine.Request{
			WorkflowID: "rollback-flow", Serial: "SN123",
		})
		res := r.Result()

		as.ExecutionStatus(res, api.ExecutionCompleted)
		as.Nil(res.Rollback)
		as.Zero(env.Provider.CallCount("undo-apply"))
		as.Empty(env.Audit.ByType(api.JobID(r.ID()), api.AuditRollback))
	}, helpers.WithManifest(testManifest))
}

func TestNoRollbackWithoutSupport(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		as := assert.New(t)
		env.Provider.SetError("flaky", errDevice)

		r := env.Run(t, &engine.Request{
			WorkflowID: "retry-flow", Serial: "SN123",
		})
		res := r.Result()

		as.ExecutionStatus(res, api.ExecutionFailed)
		as.Nil(res.Rollback)
		as.Empty(env.Audit.ByType(api.JobID(r.ID()), api.AuditRollback))
	}, helpers.WithManifest(testManifest))
}
