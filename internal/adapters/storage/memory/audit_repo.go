package memory

import (
	"context"
	"errors"
	"sync"

	"healsync/internal/domain/audit"
)

type auditRepo struct {
	mu sync.RWMutex
	// Append-only: nunca se muta una entrada ya escrita.
	byPatient map[string][]audit.Entry
}

func NewAuditRepo() audit.Repository {
	return &auditRepo{
		byPatient: make(map[string][]audit.Entry),
	}
}

func (r *auditRepo) Append(ctx context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.PatientID == "" {
		return errors.New("audit entry requires patient id")
	}
	r.byPatient[e.PatientID] = append(r.byPatient[e.PatientID], e)
	return nil
}

func (r *auditRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byPatient[patientID]

	// Más recientes primero; el slice interno está en orden de inserción.
	out := make([]audit.Entry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
