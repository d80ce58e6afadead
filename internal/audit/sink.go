package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type (
	// Sink accepts audit records. Implementations must be safe for
	// concurrent use
	Sink interface {
		Record(ctx context.Context, rec api.AuditRecord) error
	}

	// LogSink writes each record as a structured log entry
	LogSink struct {
		logger *slog.Logger
	}

	// MultiSink delivers every record to each of its sinks
	MultiSink []Sink

	// DiscardSink drops every record
	DiscardSink struct{}
)

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = DiscardSink{}
)

// NewLogSink creates a sink logging to logger, or to the default logger
// when logger is nil
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record logs the record at info level, or warn level when it failed
func (s *LogSink) Record(ctx context.Context, rec api.AuditRecord) error {
	level := slog.LevelInfo
	if !rec.Success {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		log.JobID(rec.JobID),
		slog.String("actor", rec.Actor),
		slog.String("action_type", rec.ActionType),
		slog.String("action_id", rec.ActionID),
		slog.String("action_name", rec.ActionName),
		slog.Bool("success", rec.Success),
	}
	if rec.CaseID != "" {
		attrs = append(attrs, slog.String("case_id", rec.CaseID))
	}
	if rec.Error != "" {
		attrs = append(attrs, log.ErrorString(rec.Error))
	}
	s.logger.LogAttrs(ctx, level, "Audit", attrs...)
	return nil
}

// Record delivers to every sink and joins their errors
func (m MultiSink) Record(ctx context.Context, rec api.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Record does nothing
func (DiscardSink) Record(context.Context, api.AuditRecord) error {
	return nil
}
