package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// Queue delivers records to a sink from a single background goroutine so
// slow storage never stalls an execution
type Queue struct {
	sink     Sink
	prod     topic.Producer[api.AuditRecord]
	cons     topic.Consumer[api.AuditRecord]
	stop     chan struct{}
	inflight sync.WaitGroup
	runWG    sync.WaitGroup
	started  sync.Once
	stopOnce sync.Once
	mu       sync.Mutex
	closed   bool
}

// ErrQueueClosed is returned for records offered after Flush
var ErrQueueClosed = errors.New("audit queue closed")

var _ Sink = (*Queue)(nil)

// NewQueue creates a queue in front of sink. Call Start to begin delivery
func NewQueue(sink Sink) *Queue {
	queue := caravan.NewTopic[api.AuditRecord]()
	return &Queue{
		sink: sink,
		prod: queue.NewProducer(),
		cons: queue.NewConsumer(),
		stop: make(chan struct{}),
	}
}

// Start begins delivering queued records
func (q *Queue) Start() {
	q.started.Do(func() {
		q.runWG.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case rec, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.deliver(rec)
					q.inflight.Done()
				}
			}
		})
	})
}

// Record enqueues the record. Delivery errors are logged, never returned;
// only a closed queue is reported
func (q *Queue) Record(_ context.Context, rec api.AuditRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.inflight.Add(1)
	if !message.Send(q.prod, rec) {
		q.inflight.Done()
		return ErrQueueClosed
	}
	return nil
}

// Flush stops accepting records, waits until every accepted record has
// reached the sink, and stops the queue
func (q *Queue) Flush() {
	q.Start()

	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.prod.Close()
	}
	q.mu.Unlock()

	q.inflight.Wait()
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.runWG.Wait()
	q.cons.Close()
}

func (q *Queue) deliver(rec api.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Audit sink panic",
				log.JobID(rec.JobID),
				slog.Any("panic", r))
		}
	}()
	if err := q.sink.Record(context.Background(), rec); err != nil {
		slog.Error("Failed to record audit entry",
			log.JobID(rec.JobID),
			slog.String("action_type", rec.ActionType),
			log.Error(err))
	}
}
