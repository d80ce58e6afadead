package progress

import (
	"context"
	"log/slog"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// Pump drains executor events into the job table until the channel is
// closed or ctx ends. Each execution is tracked as the job with the same
// id
func (b *Broadcaster) Pump(ctx context.Context, events <-chan api.ExecutionEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.Apply(ev)
		case <-ctx.Done():
			return
		}
	}
}

// Apply maps one executor event onto the matching job operation. Event
// types with no job meaning are ignored
func (b *Broadcaster) Apply(ev api.ExecutionEvent) {
	id := api.JobID(ev.ExecutionID)
	var err error
	switch ev.Type {
	case api.EventExecutionStarted:
		_, err = b.Start(&api.FlashStartRequest{
			JobID:        id,
			DeviceSerial: ev.DeviceSerial,
			DeviceName:   ev.DeviceName,
			WorkflowID:   ev.WorkflowID,
		})
	case api.EventStepCompleted:
		_, err = b.Progress(id, &api.JobUpdate{
			Stage:    ev.StepName,
			Progress: stepProgress(ev),
		})
	case api.EventExecutionPaused:
		_, err = b.Pause(id)
	case api.EventExecutionResumed:
		_, err = b.Resume(id)
	case api.EventExecutionCompleted:
		_, err = b.Complete(id)
	case api.EventExecutionFailed:
		_, err = b.Fail(id, ev.Error)
	case api.EventExecutionCancelled:
		_, err = b.Cancel(id)
	default:
		return
	}
	if err != nil {
		slog.Warn("Execution event not applied",
			log.JobID(id),
			slog.String("event", string(ev.Type)),
			log.Error(err))
	}
}

func stepProgress(ev api.ExecutionEvent) float64 {
	if ev.TotalSteps <= 0 {
		return 0
	}
	return float64(ev.CompletedSteps) / float64(ev.TotalSteps) * 100
}
