package grants

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"healsync/internal/middleware"
	"healsync/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/access", func(ar chi.Router) {
		// Paciente
		ar.Post("/generate", generateHandler(svc))
		ar.Post("/grant-by-phone", grantByPhoneHandler(svc))
		ar.Post("/revoke", revokeHandler(svc))
		ar.Get("/pending-requests", pendingRequestsHandler(svc))

		// Doctor
		ar.Post("/claim", claimHandler(svc))
		ar.Post("/request", requestHandler(svc))

		// Cualquier usuario autenticado: el OTP es la prueba de autorización.
		ar.Post("/approve-doctor-request", approveHandler(svc))

		// Paciente o doctor, cada uno ve lo suyo.
		ar.Get("/list", listHandler(svc))
	})
}

type grantResponse struct {
	ID             string     `json:"id"`
	PatientID      string     `json:"patientId"`
	DoctorID       string     `json:"doctorId,omitempty"`
	Capability     Capability `json:"capability"`
	Issuance       Issuance   `json:"issuance"`
	Status         Status     `json:"status"`
	ShortCode      string     `json:"shortCode"`
	ExpiryDuration string     `json:"expiryDuration"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ClaimedAt      *time.Time `json:"claimedAt,omitempty"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
}

type generateRequest struct {
	ExpiryDuration string `json:"expiryDuration"`
}

type generateResponse struct {
	GrantID        string     `json:"id"`
	Token          string     `json:"token"`
	ShortCode      string     `json:"shortCode"`
	QRPayload      string     `json:"qrPayload"`
	Status         Status     `json:"status"`
	ExpiryDuration string     `json:"expiryDuration"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// generateHandler emite un token de acceso directo (QR + short code).
//
//	@Summary	Emitir token de acceso directo
//	@Tags		access
//	@Router		/access/generate [post]
func generateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePatient)
		if !ok {
			return
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}

		tok, err := svc.Generate(r.Context(), claims.UserID, req.ExpiryDuration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		g := tok.Grant
		writeData(w, http.StatusCreated, generateResponse{
			GrantID:        g.ID,
			Token:          g.Secret,
			ShortCode:      g.ShortCode,
			QRPayload:      tok.QRPayload,
			Status:         g.Status,
			ExpiryDuration: string(g.ExpiryPolicy),
			ExpiresAt:      g.ExpiresAt,
		})
	}
}

type claimRequest struct {
	// El QR manda token; el formulario manual manda shortCode. Cualquiera
	// de los dos resuelve al mismo grant.
	Token     string `json:"token"`
	ShortCode string `json:"shortCode"`
}

// claimHandler liga el token al doctor autenticado. Acepta el token completo
// (QR) o el short code de 6 dígitos.
//
//	@Summary	Reclamar un token de acceso
//	@Tags		access
//	@Router		/access/claim [post]
func claimHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleDoctor)
		if !ok {
			return
		}

		var req claimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}

		credential := req.Token
		if credential == "" {
			credential = req.ShortCode
		}

		g, err := svc.Claim(r.Context(), credential, claims.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

type phoneRequestRequest struct {
	PatientPhone   string `json:"patientPhone"`
	Reason         string `json:"reason"`
	ExpiryDuration string `json:"expiryDuration"`
}

type phoneRequestResponse struct {
	RequestID    string    `json:"requestId"`
	PatientName  string    `json:"patientName"`
	OTPSentTo    string    `json:"otpSentTo"`
	OTPExpiresAt time.Time `json:"otpExpiresAt"`
}

// requestHandler inicia una solicitud por teléfono: el OTP viaja al paciente.
//
//	@Summary	Solicitar acceso por teléfono del paciente
//	@Tags		access
//	@Router		/access/request [post]
func requestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleDoctor)
		if !ok {
			return
		}

		var req phoneRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}

		receipt, err := svc.RequestByPhone(r.Context(), claims.UserID, req.PatientPhone, req.Reason, req.ExpiryDuration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusCreated, phoneRequestResponse{
			RequestID:    receipt.RequestID,
			PatientName:  receipt.PatientName,
			OTPSentTo:    receipt.OTPSentTo,
			OTPExpiresAt: receipt.OTPExpiresAt,
		})
	}
}

type approveRequest struct {
	RequestID string `json:"requestId"`
	OTP       string `json:"otp"`
}

// approveHandler valida el OTP y materializa el grant. No exige rol: quien
// presente el código correcto dentro de la ventana habla por el paciente.
//
//	@Summary	Aprobar una solicitud con OTP
//	@Tags		access
//	@Router		/access/approve-doctor-request [post]
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAuth(w, r); !ok {
			return
		}

		var req approveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}

		g, err := svc.Approve(r.Context(), req.RequestID, req.OTP)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

type pendingRequestResponse struct {
	RequestID      string    `json:"requestId"`
	DoctorID       string    `json:"doctorId"`
	Reason         string    `json:"reason"`
	ExpiryDuration string    `json:"expiryDuration"`
	OTPExpiresAt   time.Time `json:"otpExpiresAt"`
	RequestedAt    time.Time `json:"requestedAt"`
}

// pendingRequestsHandler lista solicitudes vivas dirigidas al paciente.
//
//	@Summary	Ver solicitudes pendientes
//	@Tags		access
//	@Router		/access/pending-requests [get]
func pendingRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePatient)
		if !ok {
			return
		}

		items, err := svc.PendingForPatient(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]pendingRequestResponse, 0, len(items))
		for _, req := range items {
			out = append(out, pendingRequestResponse{
				RequestID:      req.ID,
				DoctorID:       req.DoctorID,
				Reason:         req.Reason,
				ExpiryDuration: string(req.ExpiryPolicy),
				OTPExpiresAt:   req.OTPExpiresAt,
				RequestedAt:    req.CreatedAt,
			})
		}
		writeData(w, http.StatusOK, out)
	}
}

type grantByPhoneRequest struct {
	DoctorPhone    string `json:"doctorPhone"`
	ExpiryDuration string `json:"expiryDuration"`
}

type grantByPhoneResponse struct {
	grantResponse
	DoctorName string `json:"doctorName"`
}

// grantByPhoneHandler otorga acceso directo a un doctor registrado por su
// teléfono. Sin claim ni OTP: queda activo inmediatamente.
//
//	@Summary	Otorgar acceso directo por teléfono del doctor
//	@Tags		access
//	@Router		/access/grant-by-phone [post]
func grantByPhoneHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePatient)
		if !ok {
			return
		}

		var req grantByPhoneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}

		pg, err := svc.GrantByPhone(r.Context(), claims.UserID, req.DoctorPhone, req.ExpiryDuration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusCreated, grantByPhoneResponse{
			grantResponse: toGrantResponse(pg.Grant, time.Now()),
			DoctorName:    pg.DoctorName,
		})
	}
}

type revokeRequest struct {
	AccessID string `json:"accessId"`
}

// revokeHandler revoca un grant del paciente. Idempotente.
//
//	@Summary	Revocar un acceso
//	@Tags		access
//	@Router		/access/revoke [post]
func revokeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePatient)
		if !ok {
			return
		}

		var req revokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}

		g, err := svc.Revoke(r.Context(), claims.UserID, req.AccessID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

// listHandler: el paciente ve los grants que emitió, el doctor los que tiene.
//
//	@Summary	Listar accesos del usuario
//	@Tags		access
//	@Router		/access/list [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAuth(w, r)
		if !ok {
			return
		}

		var (
			items []Grant
			err   error
		)
		switch claims.Role {
		case auth.RolePatient:
			items, err = svc.ListByPatient(r.Context(), claims.UserID)
		case auth.RoleDoctor:
			items, err = svc.ListByDoctor(r.Context(), claims.UserID)
		default:
			writeError(w, http.StatusForbidden, "forbidden", "role cannot list grants")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		now := time.Now()
		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			out = append(out, toGrantResponse(g, now))
		}
		writeData(w, http.StatusOK, out)
	}
}

// toGrantResponse reporta siempre el estado efectivo contra el reloj, no el
// flag almacenado: un grant vencido se muestra expired aunque nadie haya
// escrito la transición.
func toGrantResponse(g Grant, now time.Time) grantResponse {
	return grantResponse{
		ID:             g.ID,
		PatientID:      g.PatientID,
		DoctorID:       g.DoctorID,
		Capability:     g.Capability,
		Issuance:       g.Issuance,
		Status:         g.EffectiveStatus(now),
		ShortCode:      g.ShortCode,
		ExpiryDuration: string(g.ExpiryPolicy),
		ExpiresAt:      g.ExpiresAt,
		Reason:         g.Reason,
		CreatedAt:      g.CreatedAt,
		ClaimedAt:      g.ClaimedAt,
		RevokedAt:      g.RevokedAt,
	}
}

func requireAuth(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return auth.Claims{}, false
	}
	return claims, true
}

func requireRole(w http.ResponseWriter, r *http.Request, role auth.Role) (auth.Claims, bool) {
	claims, ok := requireAuth(w, r)
	if !ok {
		return auth.Claims{}, false
	}
	if claims.Role != role {
		writeError(w, http.StatusForbidden, "forbidden", "role not allowed for this operation")
		return auth.Claims{}, false
	}
	return claims, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, ErrExpired):
		writeError(w, http.StatusGone, "expired", "expired")
	case errors.Is(err, ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "already_claimed", "token already claimed by another doctor")
	case errors.Is(err, ErrAlreadyUsed):
		writeError(w, http.StatusConflict, "already_used", "request already approved")
	case errors.Is(err, ErrInvalidOtp):
		// Mensaje uniforme: no revela si la request existe o el código falló.
		writeError(w, http.StatusUnauthorized, "invalid_otp", "invalid code or request")
	case errors.Is(err, ErrDispatchFailed):
		writeError(w, http.StatusBadGateway, "dispatch_failed", "could not deliver verification code")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// writeJSON/writeData/writeError están duplicados intencionalmente en handlers
// de distintos módulos para evitar crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, map[string]any{"data": v})
}

func writeError(w http.ResponseWriter, status int, category, message string) {
	writeJSON(w, status, map[string]string{
		"error":   category,
		"message": message,
	})
}
