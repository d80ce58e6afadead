package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/audit"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type recordingSink struct {
	records []api.AuditRecord
	err     error
	mu      sync.Mutex
}

func (s *recordingSink) Record(_ context.Context, rec api.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) all() []api.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.AuditRecord(nil), s.records...)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := audit.NewLogSink(logger)

	err := sink.Record(context.Background(), api.AuditRecord{
		JobID:      "exec_1",
		CaseID:     "case-7",
		Actor:      "tech@bench",
		ActionType: api.AuditStepOutcome,
		ActionID:   "android.fastboot.unlock",
		ActionName: "Unlock bootloader",
		Error:      "FAILED (remote: 'not allowed')",
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "exec_1", entry["job_id"])
	assert.Equal(t, "case-7", entry["case_id"])
	assert.Equal(t, "FAILED (remote: 'not allowed')", entry["error"])
	assert.Equal(t, false, entry["success"])
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("disk full")}
	sink := audit.MultiSink{bad, ok}

	err := sink.Record(context.Background(), api.AuditRecord{JobID: "j"})
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, ok.all(), 1)
	assert.Len(t, bad.all(), 1)
}

func TestQueueFlushDeliversEverything(t *testing.T) {
	rec := &recordingSink{}
	q := audit.NewQueue(rec)
	q.Start()

	for i := range 50 {
		err := q.Record(context.Background(), api.AuditRecord{
			JobID:      "exec_1",
			ActionType: api.AuditStepOutcome,
			ActionID:   string(rune('a' + i%26)),
		})
		require.NoError(t, err)
	}
	q.Flush()

	got := rec.all()
	require.Len(t, got, 50)
	assert.Equal(t, "a", got[0].ActionID)
	assert.Equal(t, "x", got[49].ActionID)
}

func TestQueueSurvivesSinkFailure(t *testing.T) {
	rec := &recordingSink{err: errors.New("unavailable")}
	q := audit.NewQueue(rec)
	q.Start()

	require.NoError(t, q.Record(context.Background(), api.AuditRecord{}))
	require.NoError(t, q.Record(context.Background(), api.AuditRecord{}))
	q.Flush()

	assert.Len(t, rec.all(), 2)
}

func TestQueueFlushRepeatedly(t *testing.T) {
	for round := range 50 {
		rec := &recordingSink{}
		q := audit.NewQueue(rec)
		q.Start()
		for range 200 {
			require.NoError(t,
				q.Record(context.Background(), api.AuditRecord{JobID: "j"}),
			)
		}
		q.Flush()
		require.Len(t, rec.all(), 200, "round %d", round)
	}
}

func TestQueueFlushWithoutStart(t *testing.T) {
	rec := &recordingSink{}
	q := audit.NewQueue(rec)

	require.NoError(t, q.Record(context.Background(), api.AuditRecord{}))
	q.Flush()

	assert.Len(t, rec.all(), 1)
}

func TestQueueRecordAfterFlush(t *testing.T) {
	rec := &recordingSink{}
	q := audit.NewQueue(rec)
	q.Start()
	q.Flush()

	err := q.Record(context.Background(), api.AuditRecord{JobID: "late"})
	assert.ErrorIs(t, err, audit.ErrQueueClosed)
	assert.Empty(t, rec.all())

	q.Flush()
}

func TestQueueConcurrentRecordAndFlush(t *testing.T) {
	rec := &recordingSink{}
	q := audit.NewQueue(rec)
	q.Start()

	var accepted sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for range 8 {
		accepted.Go(func() {
			for range 50 {
				err := q.Record(context.Background(), api.AuditRecord{})
				if err == nil {
					mu.Lock()
					count++
					mu.Unlock()
				}
			}
		})
	}
	q.Flush()
	accepted.Wait()

	assert.Len(t, rec.all(), count)
}
