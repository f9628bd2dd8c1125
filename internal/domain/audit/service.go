package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"healsync/internal/platform/logger"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	defaultLimit = 100
	maxLimit     = 500
)

type Service struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Record escribe una entrada. Best-effort: un fallo del log de auditoría no
// debe tumbar la operación que lo origina, pero sí queda registrado.
func (s *Service) Record(ctx context.Context, patientID, doctorID string, action Action, details map[string]any) {
	e := Entry{
		ID:        uuid.NewString(),
		PatientID: strings.TrimSpace(patientID),
		DoctorID:  strings.TrimSpace(doctorID),
		Action:    action,
		Timestamp: s.now(),
		Details:   details,
	}
	if e.PatientID == "" {
		return
	}
	if err := s.repo.Append(ctx, e); err != nil {
		s.log.Error("audit append failed", map[string]any{
			"action":     string(action),
			"patient_id": e.PatientID,
			"error":      err.Error(),
		})
	}
}

// ListByPatient siempre se scopea al patientID del caller; el handler no
// acepta otro. Limit fuera de rango se normaliza, no falla.
func (s *Service) ListByPatient(ctx context.Context, patientID string, limit int) ([]Entry, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return s.repo.ListByPatient(ctx, patientID, limit)
}
