package clinic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"healsync/internal/platform/httpclient"
	"healsync/internal/ports/records"
)

var (
	ErrClinicNotConfigured = errors.New("clinic records client not configured")
	ErrClinicUpstream      = errors.New("clinic records upstream error")
)

// Config del cliente del servicio de registros médicos.
type Config struct {
	BaseURL string
	APIKey  string

	// Si está vacío, se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Client habla con el servicio que almacena los registros médicos reales.
// El gate nunca almacena documentos; solo lista y crea a través de este
// contrato. Implementa records.Service.
type Client struct {
	apiKey       string
	apiKeyHeader string
	http         *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
		http:         hc,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != ""
}

type recordResponse struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patientId"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes"`
	UploadedBy string    `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c *Client) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	if !c.IsConfigured() {
		return nil, ErrClinicNotConfigured
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, fmt.Errorf("%w: missing patient id", ErrClinicUpstream)
	}

	var out struct {
		Records []recordResponse `json:"records"`
	}
	path := "/v1/patients/" + url.PathEscape(patientID) + "/records"
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClinicUpstream, err)
	}

	list := make([]records.Record, 0, len(out.Records))
	for _, r := range out.Records {
		list = append(list, toRecord(r))
	}
	return list, nil
}

func (c *Client) Create(ctx context.Context, patientID string, in records.NewRecord) (records.Record, error) {
	if !c.IsConfigured() {
		return records.Record{}, ErrClinicNotConfigured
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return records.Record{}, fmt.Errorf("%w: missing patient id", ErrClinicUpstream)
	}

	body := map[string]string{
		"kind":       in.Kind,
		"title":      in.Title,
		"notes":      in.Notes,
		"uploadedBy": in.UploadedBy,
	}

	var out recordResponse
	path := "/v1/patients/" + url.PathEscape(patientID) + "/records"
	if err := c.http.DoJSON(ctx, http.MethodPost, path, c.headers(), body, &out); err != nil {
		return records.Record{}, fmt.Errorf("%w: %v", ErrClinicUpstream, err)
	}
	return toRecord(out), nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.apiKey != "" {
		h[c.apiKeyHeader] = c.apiKey
	}
	return h
}

func toRecord(r recordResponse) records.Record {
	return records.Record{
		ID:         r.ID,
		PatientID:  r.PatientID,
		Kind:       r.Kind,
		Title:      r.Title,
		Notes:      r.Notes,
		UploadedBy: r.UploadedBy,
		CreatedAt:  r.CreatedAt,
	}
}
