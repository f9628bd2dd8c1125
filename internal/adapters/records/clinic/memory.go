package clinic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"healsync/internal/ports/records"
)

// MemoryService guarda registros en memoria para dev y tests.
type MemoryService struct {
	mu        sync.RWMutex
	byPatient map[string][]records.Record
	now       func() time.Time
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		byPatient: make(map[string][]records.Record),
		now:       time.Now,
	}
}

func (m *MemoryService) Seed(r records.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPatient[r.PatientID] = append(m.byPatient[r.PatientID], r)
}

func (m *MemoryService) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.byPatient[patientID]
	out := make([]records.Record, len(src))
	copy(out, src)

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryService) Create(ctx context.Context, patientID string, in records.NewRecord) (records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := records.Record{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		Kind:       in.Kind,
		Title:      in.Title,
		Notes:      in.Notes,
		UploadedBy: in.UploadedBy,
		CreatedAt:  m.now(),
	}
	m.byPatient[patientID] = append(m.byPatient[patientID], r)
	return r, nil
}
