package audit

import "context"

type Repository interface {
	Append(ctx context.Context, e Entry) error

	// ListByPatient devuelve entradas del paciente, más recientes primero.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]Entry, error)
}
