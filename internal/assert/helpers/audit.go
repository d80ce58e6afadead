package helpers

import (
	"context"
	"sync"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/audit"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// AuditRecorder is an audit sink that keeps every record in memory
type AuditRecorder struct {
	records []api.AuditRecord
	mu      sync.Mutex
}

var _ audit.Sink = (*AuditRecorder)(nil)

// NewAuditRecorder creates an empty recorder
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// Record stores the record
func (a *AuditRecorder) Record(_ context.Context, rec api.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

// Records returns every stored record in arrival order
func (a *AuditRecorder) Records() []api.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]api.AuditRecord(nil), a.records...)
}

// ByType returns the stored records of one action type for a job
func (a *AuditRecorder) ByType(
	job api.JobID, actionType string,
) []api.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	var res []api.AuditRecord
	for _, r := range a.records {
		if r.JobID == job && r.ActionType == actionType {
			res = append(res, r)
		}
	}
	return res
}
