package records

import (
	"context"
	"time"
)

// Record es la vista mínima de un registro médico que expone el gate.
// El almacenamiento real (documentos, OCR, etc.) vive en el servicio de records.
type Record struct {
	ID         string
	PatientID  string
	Kind       string
	Title      string
	Notes      string
	UploadedBy string
	CreatedAt  time.Time
}

type NewRecord struct {
	Kind       string
	Title      string
	Notes      string
	UploadedBy string
}

// Service es el contrato contra el servicio externo de registros médicos.
type Service interface {
	ListByPatient(ctx context.Context, patientID string) ([]Record, error)
	Create(ctx context.Context, patientID string, in NewRecord) (Record, error)
}
