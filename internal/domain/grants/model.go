package grants

import "time"

// Capability es fija: el sistema nunca emite permisos de edición/borrado.
type Capability string

const CapabilityViewUpload Capability = "view_upload"

type Operation string

const (
	OpView   Operation = "view"
	OpUpload Operation = "upload"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
)

type Issuance string

const (
	IssuanceDirect       Issuance = "direct"
	IssuancePhoneRequest Issuance = "phone_request"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

type Grant struct {
	ID string

	PatientID string
	DoctorID  string // vacío hasta el claim

	Capability Capability
	Issuance   Issuance
	Status     Status

	// Secret es la credencial completa (bearer); ShortCode es el alias de
	// 6 dígitos que el paciente puede dictar. Ambos resuelven al mismo grant.
	Secret    string
	ShortCode string

	ExpiryPolicy ExpiryPolicy
	ExpiresAt    *time.Time // nil = hasta revocar

	Reason string // requerido en phone_request; se muestra al paciente

	CreatedAt time.Time
	UpdatedAt time.Time
	ClaimedAt *time.Time
	RevokedAt *time.Time
}

// EffectiveStatus recalcula el estado contra el reloj.
// Un Active guardado cuyo expiry absoluto ya pasó ES expired, aunque nadie
// haya escrito la transición; nunca confiar en el flag almacenado solo.
func (g Grant) EffectiveStatus(now time.Time) Status {
	switch g.Status {
	case StatusPending, StatusActive:
		if g.ExpiresAt != nil && now.After(*g.ExpiresAt) {
			return StatusExpired
		}
	}
	return g.Status
}

func (g Grant) Terminal(now time.Time) bool {
	s := g.EffectiveStatus(now)
	return s == StatusRevoked || s == StatusExpired
}

type RequestStatus string

const (
	RequestAwaitingOTP RequestStatus = "awaiting_otp"
	RequestApproved    RequestStatus = "approved"
	RequestExpired     RequestStatus = "expired"
	RequestFailed      RequestStatus = "failed"
)

// PendingRequest es una solicitud de acceso iniciada por un doctor, que el
// paciente aprueba dictando el OTP que recibió fuera de banda.
type PendingRequest struct {
	ID string

	DoctorID     string
	PatientID    string
	PatientPhone string

	Capability   Capability
	ExpiryPolicy ExpiryPolicy
	Reason       string

	OTPHash      string
	OTPExpiresAt time.Time
	Attempts     int

	Status  RequestStatus
	GrantID string // seteado al aprobar

	CreatedAt time.Time
	UpdatedAt time.Time
}
