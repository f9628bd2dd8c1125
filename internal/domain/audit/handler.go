package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"healsync/internal/middleware"
	"healsync/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/access/activity-logs", activityLogsHandler(svc))
}

type entryResponse struct {
	ID        string         `json:"id"`
	DoctorID  string         `json:"doctorId,omitempty"`
	Action    Action         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// activityLogsHandler devuelve la actividad del propio paciente, más reciente
// primero. El scope es siempre el caller: no acepta patientId como parámetro.
//
//	@Summary	Ver registro de actividad
//	@Tags		access
//	@Router		/access/activity-logs [get]
func activityLogsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if claims.Role != auth.RolePatient {
			writeError(w, http.StatusForbidden, "forbidden", "role not allowed for this operation")
			return
		}

		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a number")
				return
			}
			limit = n
		}

		items, err := svc.ListByPatient(r.Context(), claims.UserID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, entryResponse{
				ID:        e.ID,
				DoctorID:  e.DoctorID,
				Action:    e.Action,
				Timestamp: e.Timestamp,
				Details:   e.Details,
			})
		}
		writeData(w, http.StatusOK, out)
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
