package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"healsync/internal/domain/audit"
	"healsync/internal/platform/logger"
	"healsync/internal/ports/directory"
	"healsync/internal/ports/notify"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrExpired        = errors.New("expired")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrAlreadyUsed    = errors.New("already used")
	// ErrInvalidOtp es deliberadamente uniforme: no distingue "request no
	// existe" de "código incorrecto" para resistir enumeración.
	ErrInvalidOtp     = errors.New("invalid otp")
	ErrDispatchFailed = errors.New("otp dispatch failed")
	ErrShortCodeSpace = errors.New("short code space exhausted")
)

const (
	otpTTL         = 10 * time.Minute
	maxOTPAttempts = 5

	// Reintentos para encontrar un short code libre entre grants vivos.
	shortCodeRetries = 10
)

type Service struct {
	grants   Repository
	requests RequestRepository
	dir      directory.Lookup
	notifier notify.Dispatcher
	audit    *audit.Service
	log      logger.Logger

	// publicBaseURL arma el qrPayload (URL de claim que el front dibuja como QR).
	publicBaseURL string

	now func() time.Time
}

type Config struct {
	Grants        Repository
	Requests      RequestRepository
	Directory     directory.Lookup
	Notifier      notify.Dispatcher
	Audit         *audit.Service
	Logger        logger.Logger
	PublicBaseURL string
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = "http://localhost:3000"
	}
	return &Service{
		grants:        cfg.Grants,
		requests:      cfg.Requests,
		dir:           cfg.Directory,
		notifier:      cfg.Notifier,
		audit:         cfg.Audit,
		log:           log,
		publicBaseURL: base,
		now:           time.Now,
	}
}

// GeneratedToken es lo que ve el paciente al emitir: credencial completa,
// short code dictable y payload para el QR.
type GeneratedToken struct {
	Grant     Grant
	QRPayload string
}

// Generate emite un grant direct: válido pero sin doctor ligado todavía.
func (s *Service) Generate(ctx context.Context, patientID string, rawPolicy string) (GeneratedToken, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return GeneratedToken{}, ErrInvalidInput
	}
	policy, err := ParseExpiryPolicy(rawPolicy)
	if err != nil {
		return GeneratedToken{}, err
	}

	secret, err := newSecret()
	if err != nil {
		return GeneratedToken{}, err
	}
	code, err := s.freeShortCode(ctx)
	if err != nil {
		return GeneratedToken{}, err
	}

	now := s.now()
	g := Grant{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		Capability:   CapabilityViewUpload,
		Issuance:     IssuanceDirect,
		Status:       StatusPending,
		Secret:       secret,
		ShortCode:    code,
		ExpiryPolicy: policy,
		ExpiresAt:    policy.ExpiresAt(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.grants.Create(ctx, g); err != nil {
		return GeneratedToken{}, err
	}

	s.audit.Record(ctx, patientID, "", audit.ActionGrantIssued, map[string]any{
		"grantId":  g.ID,
		"issuance": string(IssuanceDirect),
		"expiry":   string(policy),
	})

	return GeneratedToken{Grant: g, QRPayload: s.claimURL(secret)}, nil
}

// Claim liga al doctor con el grant. credential puede ser el secret completo
// o el short code. Primer claim gana; re-claim del mismo doctor es idempotente.
func (s *Service) Claim(ctx context.Context, credential, doctorID string) (Grant, error) {
	credential = strings.TrimSpace(credential)
	doctorID = strings.TrimSpace(doctorID)
	if credential == "" || doctorID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.grants.GetByCredential(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, err
	}

	now := s.now()
	if g.EffectiveStatus(now) == StatusExpired {
		// Transición lazy: marcar expired es cosmético, la corrección no
		// depende de esta escritura.
		g.Status = StatusExpired
		g.UpdatedAt = now
		_ = s.grants.Update(ctx, g)
		return Grant{}, ErrExpired
	}

	// Idempotente: mismo doctor, mismo grant todavía válido.
	if g.DoctorID == doctorID {
		return g, nil
	}
	if g.DoctorID != "" {
		return Grant{}, ErrAlreadyClaimed
	}

	bound, err := s.grants.Bind(ctx, g.ID, doctorID, now)
	if err != nil {
		return Grant{}, err
	}

	s.audit.Record(ctx, bound.PatientID, doctorID, audit.ActionAccessClaimed, map[string]any{
		"grantId": bound.ID,
		"method":  claimMethod(credential, bound),
	})

	return bound, nil
}

// RequestReceipt es la respuesta al doctor: a quién se mandó el OTP y hasta
// cuándo vale. El teléfono va enmascarado.
type RequestReceipt struct {
	RequestID    string
	PatientName  string
	OTPSentTo    string
	OTPExpiresAt time.Time
}

// RequestByPhone crea una solicitud indirecta: el doctor da el teléfono del
// paciente y una razón; el OTP viaja al paciente por el canal externo.
func (s *Service) RequestByPhone(ctx context.Context, doctorID, patientPhone, reason, rawPolicy string) (RequestReceipt, error) {
	doctorID = strings.TrimSpace(doctorID)
	patientPhone = strings.TrimSpace(patientPhone)
	reason = strings.TrimSpace(reason)
	if doctorID == "" || patientPhone == "" {
		return RequestReceipt{}, ErrInvalidInput
	}
	if reason == "" {
		return RequestReceipt{}, ErrInvalidInput
	}
	policy, err := ParseExpiryPolicy(rawPolicy)
	if err != nil {
		return RequestReceipt{}, err
	}

	patient, err := s.dir.ResolvePatientPhone(ctx, patientPhone)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return RequestReceipt{}, ErrNotFound
		}
		return RequestReceipt{}, err
	}

	otp, err := newOTP()
	if err != nil {
		return RequestReceipt{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return RequestReceipt{}, fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	req := PendingRequest{
		ID:           uuid.NewString(),
		DoctorID:     doctorID,
		PatientID:    patient.ID,
		PatientPhone: patient.Phone,
		Capability:   CapabilityViewUpload,
		ExpiryPolicy: policy,
		Reason:       reason,
		OTPHash:      string(hash),
		OTPExpiresAt: now.Add(otpTTL),
		Status:       RequestAwaitingOTP,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return RequestReceipt{}, err
	}

	if err := s.notifier.SendOTP(ctx, patient.ID, patient.Phone, otp); err != nil {
		// Una request cuyo OTP nunca llegó es inutilizable: la marcamos
		// failed y el caller se entera, nada queda vivo en silencio.
		req.Status = RequestFailed
		req.UpdatedAt = s.now()
		_ = s.requests.Update(ctx, req)
		s.log.Error("otp dispatch failed", map[string]any{
			"request_id": req.ID,
			"error":      err.Error(),
		})
		return RequestReceipt{}, ErrDispatchFailed
	}

	return RequestReceipt{
		RequestID:    req.ID,
		PatientName:  patient.Name,
		OTPSentTo:    maskPhone(patient.Phone),
		OTPExpiresAt: req.OTPExpiresAt,
	}, nil
}

// Approve valida el OTP y materializa el grant. Un solo uso: la transición
// awaiting_otp -> approved la serializa el store, a lo sumo un grant por request.
func (s *Service) Approve(ctx context.Context, requestID, otp string) (Grant, error) {
	requestID = strings.TrimSpace(requestID)
	otp = strings.TrimSpace(otp)
	if requestID == "" || otp == "" {
		return Grant{}, ErrInvalidOtp
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Uniforme: no revelar si la request existe.
			return Grant{}, ErrInvalidOtp
		}
		return Grant{}, err
	}

	switch req.Status {
	case RequestApproved:
		return Grant{}, ErrAlreadyUsed
	case RequestFailed:
		return Grant{}, ErrInvalidOtp
	case RequestExpired:
		return Grant{}, ErrExpired
	}

	now := s.now()
	if now.After(req.OTPExpiresAt) {
		req.Status = RequestExpired
		req.UpdatedAt = now
		_ = s.requests.Update(ctx, req)
		return Grant{}, ErrExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(req.OTPHash), []byte(otp)) != nil {
		n, ierr := s.requests.IncrementAttempts(ctx, req.ID)
		if ierr == nil && n >= maxOTPAttempts {
			req.Attempts = n
			req.Status = RequestFailed
			req.UpdatedAt = s.now()
			_ = s.requests.Update(ctx, req)
			s.log.Warn("otp request locked after repeated failures", map[string]any{
				"request_id": req.ID,
			})
		}
		return Grant{}, ErrInvalidOtp
	}

	secret, err := newSecret()
	if err != nil {
		return Grant{}, err
	}
	code, err := s.freeShortCode(ctx)
	if err != nil {
		return Grant{}, err
	}

	g := Grant{
		ID:           uuid.NewString(),
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Capability:   CapabilityViewUpload,
		Issuance:     IssuancePhoneRequest,
		Status:       StatusActive,
		Secret:       secret,
		ShortCode:    code,
		ExpiryPolicy: req.ExpiryPolicy,
		ExpiresAt:    req.ExpiryPolicy.ExpiresAt(now),
		Reason:       req.Reason,
		CreatedAt:    now,
		UpdatedAt:    now,
		ClaimedAt:    &now,
	}

	// Ganar primero la transición de la request; si otro approve ganó la
	// carrera no se crea un segundo grant.
	if err := s.requests.MarkApproved(ctx, req.ID, g.ID, now); err != nil {
		return Grant{}, err
	}
	if err := s.grants.Create(ctx, g); err != nil {
		// Compensación: una request approved sin grant persistido dejaría al
		// doctor clavado en already_used. failed permite re-solicitar limpio.
		req.Status = RequestFailed
		req.UpdatedAt = s.now()
		_ = s.requests.Update(ctx, req)
		s.log.Error("grant create failed after approve", map[string]any{
			"request_id": req.ID,
			"error":      err.Error(),
		})
		return Grant{}, err
	}

	s.audit.Record(ctx, g.PatientID, g.DoctorID, audit.ActionGrantIssued, map[string]any{
		"grantId":   g.ID,
		"issuance":  string(IssuancePhoneRequest),
		"requestId": req.ID,
		"reason":    req.Reason,
	})

	return g, nil
}

// PhoneGrant es el resultado de grant-by-phone: grant activo de inmediato.
type PhoneGrant struct {
	Grant      Grant
	DoctorName string
}

// GrantByPhone: el paciente otorga acceso directo a un doctor registrado,
// buscándolo por teléfono. No hay claim ni OTP: queda activo ya.
func (s *Service) GrantByPhone(ctx context.Context, patientID, doctorPhone, rawPolicy string) (PhoneGrant, error) {
	patientID = strings.TrimSpace(patientID)
	doctorPhone = strings.TrimSpace(doctorPhone)
	if patientID == "" || doctorPhone == "" {
		return PhoneGrant{}, ErrInvalidInput
	}
	policy, err := ParseExpiryPolicy(rawPolicy)
	if err != nil {
		return PhoneGrant{}, err
	}

	doctor, err := s.dir.ResolveDoctorPhone(ctx, doctorPhone)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return PhoneGrant{}, ErrNotFound
		}
		return PhoneGrant{}, err
	}

	secret, err := newSecret()
	if err != nil {
		return PhoneGrant{}, err
	}
	code, err := s.freeShortCode(ctx)
	if err != nil {
		return PhoneGrant{}, err
	}

	now := s.now()
	g := Grant{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		DoctorID:     doctor.ID,
		Capability:   CapabilityViewUpload,
		Issuance:     IssuanceDirect,
		Status:       StatusActive,
		Secret:       secret,
		ShortCode:    code,
		ExpiryPolicy: policy,
		ExpiresAt:    policy.ExpiresAt(now),
		CreatedAt:    now,
		UpdatedAt:    now,
		ClaimedAt:    &now,
	}

	if err := s.grants.Create(ctx, g); err != nil {
		return PhoneGrant{}, err
	}

	s.audit.Record(ctx, patientID, doctor.ID, audit.ActionGrantIssued, map[string]any{
		"grantId":  g.ID,
		"issuance": "direct_by_phone",
		"expiry":   string(policy),
	})

	return PhoneGrant{Grant: g, DoctorName: doctor.Name}, nil
}

// Revoke es unilateral e inmediato. Idempotente si ya estaba revocado o
// expirado; revoked nunca vuelve a active.
func (s *Service) Revoke(ctx context.Context, patientID, grantID string) (Grant, error) {
	patientID = strings.TrimSpace(patientID)
	grantID = strings.TrimSpace(grantID)
	if patientID == "" || grantID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.PatientID != patientID {
		return Grant{}, ErrForbidden
	}

	now := s.now()
	if st := g.EffectiveStatus(now); st == StatusRevoked || st == StatusExpired {
		return g, nil
	}

	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
	if err := s.grants.Update(ctx, g); err != nil {
		return Grant{}, err
	}

	s.audit.Record(ctx, patientID, g.DoctorID, audit.ActionAccessRevoked, map[string]any{
		"grantId": g.ID,
	})

	return g, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Grant, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.grants.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]Grant, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, ErrInvalidInput
	}
	return s.grants.ListByDoctor(ctx, doctorID)
}

// PendingForPatient lista las solicitudes awaiting_otp dirigidas al paciente,
// filtrando las que ya vencieron por reloj.
func (s *Service) PendingForPatient(ctx context.Context, patientID string) ([]PendingRequest, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.requests.ListAwaitingForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]PendingRequest, 0, len(items))
	for _, r := range items {
		if now.After(r.OTPExpiresAt) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) freeShortCode(ctx context.Context) (string, error) {
	for i := 0; i < shortCodeRetries; i++ {
		code, err := newShortCode()
		if err != nil {
			return "", err
		}
		used, err := s.grants.ShortCodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return "", ErrShortCodeSpace
}

func (s *Service) claimURL(secret string) string {
	return s.publicBaseURL + "/doctor/claim-access?token=" + secret
}

func claimMethod(credential string, g Grant) string {
	if credential == g.ShortCode {
		return "short_code"
	}
	return "token"
}

// maskPhone deja visible solo los últimos 4 dígitos.
func maskPhone(phone string) string {
	digits := 0
	out := []rune(phone)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] >= '0' && out[i] <= '9' {
			digits++
			if digits > 4 {
				out[i] = '*'
			}
		}
	}
	return string(out)
}
