package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

type (
	// Broadcaster owns the job table and the set of live subscribers. Job
	// records are kept for the life of the process
	Broadcaster struct {
		jobs   map[api.JobID]*api.Job
		order  []api.JobID
		subs   map[string]Subscriber
		clock  func() time.Time
		jobsMu sync.RWMutex
		subsMu sync.RWMutex
	}

	// Subscriber receives every progress message. Send must not block for
	// long; slow consumers should queue and drop on their own side
	Subscriber interface {
		ID() string
		Send(*api.ProgressMessage) error
	}

	// Option configures a Broadcaster
	Option func(*Broadcaster)
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already exists")
	ErrJobFinished       = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrDeviceRequired    = errors.New("device serial required")
	ErrNegativeBytes     = errors.New("byte counts cannot be negative")
)

var jobTransitions = util.StateTransitions[api.JobStatus]{
	api.JobRunning: util.SetOf(
		api.JobPaused,
		api.JobCompleted,
		api.JobFailed,
		api.JobCancelled,
	),
	api.JobPaused: util.SetOf(
		api.JobRunning,
		api.JobCompleted,
		api.JobFailed,
		api.JobCancelled,
	),
	api.JobCompleted: {},
	api.JobFailed:    {},
	api.JobCancelled: {},
}

// StageComplete is the stage of a job that finished successfully
const StageComplete = "Complete"

// WithClock sets the time source used for job and message timestamps
func WithClock(clock func() time.Time) Option {
	return func(b *Broadcaster) {
		b.clock = clock
	}
}

// NewBroadcaster creates an empty job table with no subscribers
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		jobs:  map[api.JobID]*api.Job{},
		subs:  map[string]Subscriber{},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers a running job and broadcasts flash_started. A request
// without a job id is given a fresh one
func (b *Broadcaster) Start(req *api.FlashStartRequest) (*api.Job, error) {
	if req.DeviceSerial == "" {
		return nil, ErrDeviceRequired
	}
	if req.TotalBytes < 0 {
		return nil, ErrNegativeBytes
	}
	id := req.JobID
	if id == "" {
		id = api.NewJobID()
	}

	b.jobsMu.Lock()
	if _, ok := b.jobs[id]; ok {
		b.jobsMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobExists, id)
	}
	now := b.clock()
	job := &api.Job{
		ID:           id,
		DeviceSerial: req.DeviceSerial,
		DeviceName:   req.DeviceName,
		WorkflowID:   req.WorkflowID,
		Status:       api.JobRunning,
		Stage:        api.StageInitializing,
		TotalBytes:   req.TotalBytes,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	b.jobs[id] = job
	b.order = append(b.order, id)
	res := *job
	b.jobsMu.Unlock()

	slog.Info("Job started",
		log.JobID(id),
		log.Serial(req.DeviceSerial),
		slog.Int64("total_bytes", req.TotalBytes))
	b.Broadcast(res.Message(api.MessageFlashStarted, now))
	return &res, nil
}

// Progress applies a progress report and broadcasts flash_progress. When
// the job has a known size and every byte has arrived it is completed
// and flash_completed follows
func (b *Broadcaster) Progress(
	id api.JobID, upd *api.JobUpdate,
) (*api.Job, error) {
	if upd.BytesTransferred < 0 {
		return nil, ErrNegativeBytes
	}

	var done bool
	job, now, err := b.update(id, func(j *api.Job) error {
		if j.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrJobFinished, id)
		}
		if upd.Stage != "" {
			j.Stage = upd.Stage
		}
		if upd.BytesTransferred > 0 {
			j.BytesTransferred = upd.BytesTransferred
		}
		j.TransferSpeed = upd.TransferSpeed
		j.EstimatedTimeRemaining = upd.EstimatedTimeRemaining
		j.Progress = progressOf(j, upd.Progress)
		done = j.TotalBytes > 0 && j.BytesTransferred >= j.TotalBytes
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.Broadcast(job.Message(api.MessageFlashProgress, now))
	if done {
		return b.Complete(id)
	}
	return job, nil
}

// Pause marks a running job paused and broadcasts flash_paused
func (b *Broadcaster) Pause(id api.JobID) (*api.Job, error) {
	return b.transition(id, api.JobPaused, api.MessageFlashPaused, nil)
}

// Resume marks a paused job running and broadcasts flash_resumed
func (b *Broadcaster) Resume(id api.JobID) (*api.Job, error) {
	return b.transition(id, api.JobRunning, api.MessageFlashResumed, nil)
}

// Complete finishes a job successfully and broadcasts flash_completed
func (b *Broadcaster) Complete(id api.JobID) (*api.Job, error) {
	return b.transition(id, api.JobCompleted, api.MessageFlashCompleted,
		func(j *api.Job) {
			j.Progress = 100
			j.Stage = StageComplete
			j.EstimatedTimeRemaining = 0
			if j.TotalBytes > 0 {
				j.BytesTransferred = j.TotalBytes
			}
		},
	)
}

// Fail finishes a job with an error and broadcasts flash_failed
func (b *Broadcaster) Fail(id api.JobID, msg string) (*api.Job, error) {
	return b.transition(id, api.JobFailed, api.MessageFlashFailed,
		func(j *api.Job) {
			j.Error = msg
		},
	)
}

// Cancel finishes a job as cancelled and broadcasts flash_cancelled
func (b *Broadcaster) Cancel(id api.JobID) (*api.Job, error) {
	return b.transition(id, api.JobCancelled, api.MessageFlashCancelled, nil)
}

// Get returns a copy of one job
func (b *Broadcaster) Get(id api.JobID) (*api.Job, error) {
	b.jobsMu.RLock()
	defer b.jobsMu.RUnlock()
	j, ok := b.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	res := *j
	return &res, nil
}

// List returns copies of every job, oldest first
func (b *Broadcaster) List() []*api.Job {
	return b.snapshot(func(*api.Job) bool { return true })
}

// Active returns copies of the jobs that have not finished, oldest first
func (b *Broadcaster) Active() []*api.Job {
	return b.snapshot(func(j *api.Job) bool {
		return !j.Status.IsTerminal()
	})
}

// Subscribe adds a subscriber, replacing any with the same ID
func (b *Broadcaster) Subscribe(s Subscriber) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	b.subs[s.ID()] = s
	slog.Debug("Progress subscriber added",
		slog.String("subscriber", s.ID()),
		slog.Int("subscribers", len(b.subs)))
}

// Unsubscribe removes a subscriber by ID
func (b *Broadcaster) Unsubscribe(id string) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	delete(b.subs, id)
}

// Subscribers returns the number of live subscribers
func (b *Broadcaster) Subscribers() int {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	return len(b.subs)
}

// Broadcast delivers msg to every subscriber. A subscriber that fails or
// panics is logged and skipped; the others still receive the message
func (b *Broadcaster) Broadcast(msg *api.ProgressMessage) {
	b.subsMu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subsMu.RUnlock()

	for _, s := range subs {
		deliver(s, msg)
	}
}

func deliver(s Subscriber, msg *api.ProgressMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Progress subscriber panicked",
				slog.String("subscriber", s.ID()),
				log.JobID(msg.JobID),
				slog.Any("panic", r))
		}
	}()
	if err := s.Send(msg); err != nil {
		slog.Warn("Progress delivery failed",
			slog.String("subscriber", s.ID()),
			log.JobID(msg.JobID),
			slog.String("type", string(msg.Type)),
			log.Error(err))
	}
}

func (b *Broadcaster) transition(
	id api.JobID, to api.JobStatus, typ api.MessageType, apply func(*api.Job),
) (*api.Job, error) {
	job, now, err := b.update(id, func(j *api.Job) error {
		if j.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrJobFinished, id)
		}
		if !jobTransitions.CanTransition(j.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
		}
		j.Status = to
		if to.IsTerminal() {
			j.CompletedAt = b.clock()
		}
		if apply != nil {
			apply(j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Job status changed",
		log.JobID(id),
		log.Status(to))
	b.Broadcast(job.Message(typ, now))
	return job, nil
}

// update applies fn to a job under the table lock and returns a copy.
// Unknown jobs are never created here
func (b *Broadcaster) update(
	id api.JobID, fn func(*api.Job) error,
) (*api.Job, time.Time, error) {
	b.jobsMu.Lock()
	defer b.jobsMu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err := fn(j); err != nil {
		return nil, time.Time{}, err
	}
	now := b.clock()
	j.UpdatedAt = now
	res := *j
	return &res, now, nil
}

func (b *Broadcaster) snapshot(keep func(*api.Job) bool) []*api.Job {
	b.jobsMu.RLock()
	defer b.jobsMu.RUnlock()
	res := make([]*api.Job, 0, len(b.order))
	for _, id := range b.order {
		if j := b.jobs[id]; keep(j) {
			cp := *j
			res = append(res, &cp)
		}
	}
	return slices.Clip(res)
}

// progressOf prefers a byte-derived percentage when the size is known
func progressOf(j *api.Job, reported float64) float64 {
	if j.TotalBytes > 0 && j.BytesTransferred > 0 {
		return min(float64(j.BytesTransferred)/float64(j.TotalBytes)*100, 100)
	}
	return min(max(reported, 0), 100)
}
