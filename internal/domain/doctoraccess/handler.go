package doctoraccess

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"healsync/internal/domain/access"
	"healsync/internal/domain/grants"
	"healsync/internal/middleware"
	"healsync/internal/ports/auth"
	"healsync/internal/ports/records"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes monta el gate de registros médicos: cada request pasa por el
// evaluador; nada se sirve sin una decisión fresca.
func RegisterRoutes(r chi.Router, eval *access.Evaluator, store records.Service) {
	r.Route("/doctor-access/patient/{patientID}/records", func(dr chi.Router) {
		dr.Get("/", listRecordsHandler(eval, store))
		dr.Post("/", uploadRecordHandler(eval, store))

		// Editar registros existentes no es un permiso que el sistema emita.
		dr.Patch("/{recordID}", editRecordHandler(eval))
		dr.Delete("/{recordID}", deleteRecordHandler(eval))
	})
}

type recordResponse struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patientId"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes,omitempty"`
	UploadedBy string    `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// listRecordsHandler sirve el historial del paciente a un doctor con acceso
// vigente.
//
//	@Summary	Ver registros del paciente
//	@Tags		doctor-access
//	@Router		/doctor-access/patient/{patientID}/records [get]
func listRecordsHandler(eval *access.Evaluator, store records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, patientID, ok := gate(w, r, eval, grants.OpView)
		if !ok {
			return
		}

		items, err := store.ListByPatient(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusBadGateway, "upstream", "records service unavailable")
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, toRecordResponse(rec))
		}
		writeData(w, http.StatusOK, out)
	}
}

type uploadRecordRequest struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Notes string `json:"notes"`
}

// uploadRecordHandler agrega un registro nuevo. Upload es append-only: nunca
// toca registros existentes.
//
//	@Summary	Subir un registro nuevo
//	@Tags		doctor-access
//	@Router		/doctor-access/patient/{patientID}/records [post]
func uploadRecordHandler(eval *access.Evaluator, store records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, patientID, ok := gate(w, r, eval, grants.OpUpload)
		if !ok {
			return
		}

		var req uploadRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "title required")
			return
		}

		rec, err := store.Create(r.Context(), patientID, records.NewRecord{
			Kind:       strings.TrimSpace(req.Kind),
			Title:      strings.TrimSpace(req.Title),
			Notes:      req.Notes,
			UploadedBy: claims.UserID,
		})
		if err != nil {
			writeError(w, http.StatusBadGateway, "upstream", "records service unavailable")
			return
		}

		writeData(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// editRecordHandler siempre deniega: la capability view_upload no incluye
// edición y no existe otra.
//
//	@Summary	Editar un registro (siempre denegado)
//	@Tags		doctor-access
//	@Router		/doctor-access/patient/{patientID}/records/{recordID} [patch]
func editRecordHandler(eval *access.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := gate(w, r, eval, grants.OpEdit)
		if !ok {
			return
		}
		// Inalcanzable mientras el evaluador niegue edit incondicionalmente.
		writeError(w, http.StatusForbidden, string(access.ReasonCapabilityExceeded), "edit is never granted")
	}
}

//	@Summary	Borrar un registro (siempre denegado)
//	@Tags		doctor-access
//	@Router		/doctor-access/patient/{patientID}/records/{recordID} [delete]
func deleteRecordHandler(eval *access.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := gate(w, r, eval, grants.OpDelete)
		if !ok {
			return
		}
		writeError(w, http.StatusForbidden, string(access.ReasonCapabilityExceeded), "delete is never granted")
	}
}

// gate autentica al doctor y evalúa la operación. Devuelve ok=false si ya
// respondió el error.
func gate(w http.ResponseWriter, r *http.Request, eval *access.Evaluator, op grants.Operation) (auth.Claims, string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return auth.Claims{}, "", false
	}
	if claims.Role != auth.RoleDoctor {
		writeError(w, http.StatusForbidden, "forbidden", "role not allowed for this operation")
		return auth.Claims{}, "", false
	}

	patientID := strings.TrimSpace(chi.URLParam(r, "patientID"))
	if patientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "patientID required")
		return auth.Claims{}, "", false
	}

	d := eval.Evaluate(r.Context(), claims.UserID, patientID, op)
	if !d.Allowed {
		writeDenial(w, d.Reason)
		return auth.Claims{}, "", false
	}
	return claims, patientID, true
}

// writeDenial mapea cada razón a un status y la expone tal cual: la UI del
// doctor distingue revocado de expirado de sin-acceso.
func writeDenial(w http.ResponseWriter, reason access.Reason) {
	status := http.StatusForbidden
	message := "access denied"

	switch reason {
	case access.ReasonNoAccess:
		message = "no active access for this patient"
	case access.ReasonExpired:
		message = "access expired"
	case access.ReasonRevoked:
		message = "access was revoked by the patient"
	case access.ReasonCapabilityExceeded:
		message = "operation not covered by granted capability"
	case access.ReasonSystemError:
		status = http.StatusServiceUnavailable
		message = "could not evaluate access"
	}

	writeError(w, status, string(reason), message)
}

func toRecordResponse(rec records.Record) recordResponse {
	return recordResponse{
		ID:         rec.ID,
		PatientID:  rec.PatientID,
		Kind:       rec.Kind,
		Title:      rec.Title,
		Notes:      rec.Notes,
		UploadedBy: rec.UploadedBy,
		CreatedAt:  rec.CreatedAt,
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
