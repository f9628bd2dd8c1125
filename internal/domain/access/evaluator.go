package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"healsync/internal/domain/audit"
	"healsync/internal/domain/grants"
	"healsync/internal/platform/logger"
)

// Reason clasifica cada denegación para que la UI del doctor pueda
// distinguir "revocado" de "expirado" de "sin acceso".
type Reason string

const (
	ReasonNoAccess           Reason = "no_access"
	ReasonExpired            Reason = "expired"
	ReasonRevoked            Reason = "revoked"
	ReasonCapabilityExceeded Reason = "capability_exceeded"
	ReasonSystemError        Reason = "system_error"
)

type Decision struct {
	Allowed    bool
	Capability grants.Capability // solo con Allowed
	Reason     Reason            // solo con !Allowed
	GrantID    string
}

func allow(g grants.Grant) Decision {
	return Decision{Allowed: true, Capability: g.Capability, GrantID: g.ID}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

const (
	storeRetries = 3
	retryBackoff = 100 * time.Millisecond
)

// Evaluator decide en cada request si el doctor puede operar sobre los
// registros del paciente. Sin caché: una revocación se ve en la evaluación
// inmediatamente siguiente, siempre.
type Evaluator struct {
	grants grants.Repository
	audit  *audit.Service
	log    logger.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

func NewEvaluator(repo grants.Repository, auditSvc *audit.Service, log logger.Logger) *Evaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &Evaluator{
		grants: repo,
		audit:  auditSvc,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Evaluate recalcula el estado efectivo contra el reloj en cada llamada:
// un Active guardado con expiry vencido cuenta como Expired sin necesidad
// de escritura previa. Errores del store se reintentan acotadamente y, si
// persisten, se niega el acceso (fail closed, nunca open).
func (e *Evaluator) Evaluate(ctx context.Context, doctorID, patientID string, op grants.Operation) Decision {
	doctorID = strings.TrimSpace(doctorID)
	patientID = strings.TrimSpace(patientID)
	if doctorID == "" || patientID == "" {
		return deny(ReasonNoAccess)
	}

	g, err := e.fetchWithRetry(ctx, doctorID, patientID)
	if err != nil {
		if errors.Is(err, grants.ErrNotFound) {
			// Sin grant: denegar sin escribir nada que sugiera acceso.
			e.log.Debug("access denied: no grant", map[string]any{
				"doctor_id":  doctorID,
				"patient_id": patientID,
			})
			return deny(ReasonNoAccess)
		}
		e.log.Error("access evaluation failed closed", map[string]any{
			"doctor_id":  doctorID,
			"patient_id": patientID,
			"error":      err.Error(),
		})
		return deny(ReasonSystemError)
	}

	effective := g.EffectiveStatus(e.now())

	// Edit/delete se niega exista o no capability vigente: el sistema jamás
	// emite ese permiso. Solo se audita cuando el doctor SÍ tenía un grant
	// activo (al paciente le interesa ese intento).
	if op == grants.OpEdit || op == grants.OpDelete {
		if effective == grants.StatusActive {
			e.audit.Record(ctx, patientID, doctorID, audit.ActionRecordEditDenied, map[string]any{
				"grantId":   g.ID,
				"operation": string(op),
			})
		}
		return deny(ReasonCapabilityExceeded)
	}

	switch effective {
	case grants.StatusRevoked:
		return deny(ReasonRevoked)
	case grants.StatusExpired:
		return deny(ReasonExpired)
	case grants.StatusActive:
		// sigue abajo
	default:
		// pending sin claim no otorga nada
		return deny(ReasonNoAccess)
	}

	switch op {
	case grants.OpView:
		e.audit.Record(ctx, patientID, doctorID, audit.ActionRecordViewed, map[string]any{
			"grantId": g.ID,
		})
		return allow(g)
	case grants.OpUpload:
		e.audit.Record(ctx, patientID, doctorID, audit.ActionRecordUploaded, map[string]any{
			"grantId": g.ID,
		})
		return allow(g)
	default:
		return deny(ReasonCapabilityExceeded)
	}
}

func (e *Evaluator) fetchWithRetry(ctx context.Context, doctorID, patientID string) (grants.Grant, error) {
	var lastErr error
	for attempt := 0; attempt < storeRetries; attempt++ {
		g, err := e.grants.GetForDoctorPatient(ctx, doctorID, patientID)
		if err == nil {
			return g, nil
		}
		if errors.Is(err, grants.ErrNotFound) {
			// No transitorio: no se reintenta.
			return grants.Grant{}, err
		}
		lastErr = err
		if attempt < storeRetries-1 {
			e.sleep(retryBackoff * time.Duration(attempt+1))
		}
	}
	return grants.Grant{}, lastErr
}
