package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"healsync/internal/adapters/directory/registry"
	"healsync/internal/ports/directory"
	"healsync/internal/router"
)

type captureNotifier struct {
	lastCode string
}

func (n *captureNotifier) SendOTP(ctx context.Context, patientID, phone, code string) error {
	n.lastCode = code
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *captureNotifier) {
	t.Helper()

	dir := registry.NewMemoryLookup()
	dir.SeedPatient(directory.Person{ID: "patient-1", Name: "Ana Flores", Phone: "+51999000111"})
	dir.SeedDoctor(directory.Person{ID: "doctor-1", Name: "Dr. Huamán", Phone: "+51988000222"})

	notifier := &captureNotifier{}

	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier:  nil, // modo dev: X-Debug headers
		Directory:     dir,
		Notifier:      notifier,
		PublicBaseURL: "https://app.example.com",
	}))
	t.Cleanup(ts.Close)
	return ts, notifier
}

func TestHTTP_EndToEnd_DirectTokenFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	patient := "patient-1"
	doctor := "doctor-1"

	// 1) Paciente emite token
	st, body := doReq(t, ts.URL, "POST", "/access/generate", patient, "patient", map[string]any{
		"expiryDuration": "24hours",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 generate, got %d body=%s", st, body)
	}
	var gen struct {
		Data struct {
			GrantID   string `json:"id"`
			Token     string `json:"token"`
			ShortCode string `json:"shortCode"`
			QRPayload string `json:"qrPayload"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	mustUnmarshal(t, body, &gen)
	if gen.Data.Status != "pending" || gen.Data.Token == "" || len(gen.Data.ShortCode) != 6 {
		t.Fatalf("unexpected generate payload: %s", body)
	}
	if !strings.Contains(gen.Data.QRPayload, "/doctor/claim-access?token=") {
		t.Fatalf("unexpected qr payload: %s", gen.Data.QRPayload)
	}

	// 2) Doctor aún no tiene acceso
	{
		st, body := doReq(t, ts.URL, "GET", "/doctor-access/patient/"+patient+"/records", doctor, "doctor", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 before claim, got %d body=%s", st, body)
		}
		assertErrorCategory(t, body, "no_access")
	}

	// 3) Doctor reclama con el short code
	{
		st, body := doReq(t, ts.URL, "POST", "/access/claim", doctor, "doctor", map[string]any{
			"shortCode": gen.Data.ShortCode,
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 claim, got %d body=%s", st, body)
		}
	}

	// 4) Otro doctor pierde la carrera
	{
		st, body := doReq(t, ts.URL, "POST", "/access/claim", "doctor-2", "doctor", map[string]any{
			"token": gen.Data.Token,
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 for second claimer, got %d body=%s", st, body)
		}
		assertErrorCategory(t, body, "already_claimed")
	}

	// 5) Doctor ve registros (vacío todavía) y sube uno nuevo
	{
		st, body := doReq(t, ts.URL, "GET", "/doctor-access/patient/"+patient+"/records", doctor, "doctor", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list records, got %d body=%s", st, body)
		}
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/doctor-access/patient/"+patient+"/records", doctor, "doctor", map[string]any{
			"kind":  "lab",
			"title": "Hemograma completo",
			"notes": "valores normales",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 upload, got %d body=%s", st, body)
		}
	}

	// 6) Editar jamás: mismo doctor, acceso vigente
	{
		st, body := doReq(t, ts.URL, "PATCH", "/doctor-access/patient/"+patient+"/records/rec-1", doctor, "doctor", map[string]any{
			"title": "alterado",
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 edit, got %d body=%s", st, body)
		}
		assertErrorCategory(t, body, "capability_exceeded")
	}

	// 7) Paciente revoca
	{
		st, body := doReq(t, ts.URL, "POST", "/access/revoke", patient, "patient", map[string]any{
			"accessId": gen.Data.GrantID,
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 revoke, got %d body=%s", st, body)
		}
	}

	// 8) Acceso muerto inmediatamente, con razón distinguible
	{
		st, body := doReq(t, ts.URL, "GET", "/doctor-access/patient/"+patient+"/records", doctor, "doctor", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 after revoke, got %d body=%s", st, body)
		}
		assertErrorCategory(t, body, "revoked")
	}

	// 9) El paciente ve toda la historia en su actividad
	{
		st, body := doReq(t, ts.URL, "GET", "/access/activity-logs", patient, "patient", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 activity logs, got %d body=%s", st, body)
		}
		var logs struct {
			Data []struct {
				Action string `json:"action"`
			} `json:"data"`
		}
		mustUnmarshal(t, body, &logs)

		got := map[string]bool{}
		for _, e := range logs.Data {
			got[e.Action] = true
		}
		for _, want := range []string{
			"grant-issued", "access-claimed", "record-viewed",
			"record-uploaded", "record-edited-attempt-denied", "access-revoked",
		} {
			if !got[want] {
				t.Fatalf("missing %q in activity log, got %v", want, got)
			}
		}
	}
}

func TestHTTP_EndToEnd_PhoneRequestFlow(t *testing.T) {
	ts, notifier := newTestServer(t)

	patient := "patient-1"
	doctor := "doctor-1"

	// 1) Doctor solicita acceso por teléfono
	st, body := doReq(t, ts.URL, "POST", "/access/request", doctor, "doctor", map[string]any{
		"patientPhone": "+51999000111",
		"reason":       "Consulta cardiológica",
		"expiryDuration": "7d",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 request, got %d body=%s", st, body)
	}
	var reqResp struct {
		Data struct {
			RequestID   string `json:"requestId"`
			PatientName string `json:"patientName"`
			OTPSentTo   string `json:"otpSentTo"`
		} `json:"data"`
	}
	mustUnmarshal(t, body, &reqResp)
	if reqResp.Data.PatientName != "Ana Flores" {
		t.Fatalf("unexpected patient name: %s", body)
	}
	if !strings.Contains(reqResp.Data.OTPSentTo, "*") {
		t.Fatalf("phone must be masked, got %q", reqResp.Data.OTPSentTo)
	}
	if notifier.lastCode == "" {
		t.Fatalf("OTP was never dispatched")
	}

	// 2) Paciente ve la solicitud pendiente con la razón
	{
		st, body := doReq(t, ts.URL, "GET", "/access/pending-requests", patient, "patient", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 pending, got %d body=%s", st, body)
		}
		var pending struct {
			Data []struct {
				RequestID string `json:"requestId"`
				Reason    string `json:"reason"`
			} `json:"data"`
		}
		mustUnmarshal(t, body, &pending)
		if len(pending.Data) != 1 || pending.Data[0].Reason != "Consulta cardiológica" {
			t.Fatalf("unexpected pending list: %s", body)
		}
	}

	// 3) OTP incorrecto: error uniforme
	{
		wrong := "000000"
		if wrong == notifier.lastCode {
			wrong = "111111"
		}
		st, body := doReq(t, ts.URL, "POST", "/access/approve-doctor-request", patient, "patient", map[string]any{
			"requestId": reqResp.Data.RequestID,
			"otp":       wrong,
		})
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 wrong otp, got %d body=%s", st, body)
		}
		assertErrorCategory(t, body, "invalid_otp")
	}

	// 4) OTP correcto: grant activo de inmediato
	{
		st, body := doReq(t, ts.URL, "POST", "/access/approve-doctor-request", patient, "patient", map[string]any{
			"requestId": reqResp.Data.RequestID,
			"otp":       notifier.lastCode,
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 approve, got %d body=%s", st, body)
		}
		var approved struct {
			Data struct {
				Status string `json:"status"`
			} `json:"data"`
		}
		mustUnmarshal(t, body, &approved)
		if approved.Data.Status != "active" {
			t.Fatalf("expected active grant, got %s", body)
		}
	}

	// 5) Un solo uso
	{
		st, body := doReq(t, ts.URL, "POST", "/access/approve-doctor-request", patient, "patient", map[string]any{
			"requestId": reqResp.Data.RequestID,
			"otp":       notifier.lastCode,
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 on reuse, got %d body=%s", st, body)
		}
		assertErrorCategory(t, body, "already_used")
	}

	// 6) Doctor accede sin claim adicional
	{
		st, body := doReq(t, ts.URL, "GET", "/doctor-access/patient/"+patient+"/records", doctor, "doctor", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 records after approve, got %d body=%s", st, body)
		}
	}
}

func TestHTTP_GrantByPhone_ActiveImmediately(t *testing.T) {
	ts, _ := newTestServer(t)

	st, body := doReq(t, ts.URL, "POST", "/access/grant-by-phone", "patient-1", "patient", map[string]any{
		"doctorPhone":    "+51988000222",
		"expiryDuration": "30days",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 grant-by-phone, got %d body=%s", st, body)
	}
	var resp struct {
		Data struct {
			Status     string `json:"status"`
			DoctorID   string `json:"doctorId"`
			DoctorName string `json:"doctorName"`
		} `json:"data"`
	}
	mustUnmarshal(t, body, &resp)
	if resp.Data.Status != "active" || resp.Data.DoctorID != "doctor-1" || resp.Data.DoctorName == "" {
		t.Fatalf("unexpected grant-by-phone payload: %s", body)
	}

	st, body = doReq(t, ts.URL, "GET", "/doctor-access/patient/patient-1/records", "doctor-1", "doctor", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 records, got %d body=%s", st, body)
	}
}

func TestHTTP_RoleAndAuthEnforcement(t *testing.T) {
	ts, _ := newTestServer(t)

	// Sin identidad => 401
	{
		st, _ := doReq(t, ts.URL, "POST", "/access/generate", "", "", map[string]any{"expiryDuration": "24hours"})
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 unauthenticated, got %d", st)
		}
	}

	// Doctor no puede emitir tokens de paciente
	{
		st, _ := doReq(t, ts.URL, "POST", "/access/generate", "doctor-1", "doctor", map[string]any{"expiryDuration": "24hours"})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 doctor generate, got %d", st)
		}
	}

	// Paciente no puede reclamar tokens
	{
		st, _ := doReq(t, ts.URL, "POST", "/access/claim", "patient-1", "patient", map[string]any{"token": "123456"})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 patient claim, got %d", st)
		}
	}

	// Paciente no pasa por el gate de doctor
	{
		st, _ := doReq(t, ts.URL, "GET", "/doctor-access/patient/patient-1/records", "patient-1", "patient", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 patient on doctor gate, got %d", st)
		}
	}
}

func TestHTTP_Generate_RejectsBadPolicy(t *testing.T) {
	ts, _ := newTestServer(t)

	st, body := doReq(t, ts.URL, "POST", "/access/generate", "patient-1", "patient", map[string]any{
		"expiryDuration": "forever",
	})
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 bad policy, got %d body=%s", st, body)
	}
	assertErrorCategory(t, body, "invalid_input")
}

func mustUnmarshal(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, body)
	}
}

func assertErrorCategory(t *testing.T, body []byte, want string) {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	mustUnmarshal(t, body, &resp)
	if resp.Error != want {
		t.Fatalf("expected error category %q, got %q (body=%s)", want, resp.Error, body)
	}
}

func doReq(t *testing.T, baseURL, method, path, debugUserID, debugRole string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
		req.Header.Set("X-Debug-Role", debugRole)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
