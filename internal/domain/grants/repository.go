package grants

import (
	"context"
	"time"
)

// Repository es la única fuente de verdad de grants; ningún componente
// muta estado por fuera de ella.
type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)

	// GetByCredential busca por secret o short code, solo entre grants
	// no terminales (pending/active). Los short codes pueden reutilizarse
	// una vez que el grant original expiró o fue revocado.
	GetByCredential(ctx context.Context, credential string) (Grant, error)

	// Bind liga atómicamente al doctor con un grant pending: exactamente un
	// claim gana. Si otro doctor ya está ligado devuelve ErrAlreadyClaimed;
	// si es el mismo doctor devuelve el grant existente (idempotente).
	Bind(ctx context.Context, grantID, doctorID string, at time.Time) (Grant, error)

	// GetForDoctorPatient devuelve el grant más reciente (terminal o no)
	// del par; el evaluador decide con el estado efectivo.
	GetForDoctorPatient(ctx context.Context, doctorID, patientID string) (Grant, error)

	ListByPatient(ctx context.Context, patientID string) ([]Grant, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Grant, error)

	// ShortCodeInUse consulta unicidad solo entre grants no terminales.
	ShortCodeInUse(ctx context.Context, code string) (bool, error)
}

type RequestRepository interface {
	Create(ctx context.Context, r PendingRequest) error
	Update(ctx context.Context, r PendingRequest) error
	GetByID(ctx context.Context, id string) (PendingRequest, error)

	ListAwaitingForPatient(ctx context.Context, patientID string) ([]PendingRequest, error)

	// IncrementAttempts suma un intento fallido y devuelve el total.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// MarkApproved serializa la transición awaiting_otp -> approved:
	// a lo sumo un approve gana; los demás reciben ErrAlreadyUsed.
	MarkApproved(ctx context.Context, id, grantID string, at time.Time) error
}
