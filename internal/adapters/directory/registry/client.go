package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"healsync/internal/platform/httpclient"
	"healsync/internal/ports/directory"
)

var (
	ErrRegistryNotConfigured = errors.New("registry client not configured")
	ErrRegistryUpstream      = errors.New("registry upstream error")
)

// Config del cliente del directorio de usuarios.
// BaseURL y APIKey normalmente vienen de env vars en el servicio que lo instancie.
type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: nombre del header donde se manda la API key.
	// Si está vacío, se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Client resuelve teléfonos contra el servicio de directorio (pacientes y
// médicos registrados). Implementa directory.Lookup.
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

type personResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (c *Client) ResolvePatientPhone(ctx context.Context, phone string) (directory.Person, error) {
	return c.resolve(ctx, "/v1/patients/by-phone", phone)
}

func (c *Client) ResolveDoctorPhone(ctx context.Context, phone string) (directory.Person, error) {
	return c.resolve(ctx, "/v1/doctors/by-phone", phone)
}

func (c *Client) resolve(ctx context.Context, path, phone string) (directory.Person, error) {
	if !c.IsConfigured() {
		return directory.Person{}, ErrRegistryNotConfigured
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return directory.Person{}, directory.ErrNotFound
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	var out personResponse
	err := c.http.DoJSON(ctx, http.MethodGet, path+"?phone="+url.QueryEscape(phone), headers, nil, &out)
	if err != nil {
		if httpclient.StatusOf(err) == http.StatusNotFound {
			return directory.Person{}, directory.ErrNotFound
		}
		return directory.Person{}, fmt.Errorf("%w: %v", ErrRegistryUpstream, err)
	}

	out.ID = strings.TrimSpace(out.ID)
	if out.ID == "" {
		return directory.Person{}, fmt.Errorf("%w: response missing id", ErrRegistryUpstream)
	}

	return directory.Person{
		ID:    out.ID,
		Name:  strings.TrimSpace(out.Name),
		Phone: strings.TrimSpace(out.Phone),
	}, nil
}
