package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"healsync/internal/platform/httpclient"
)

var (
	ErrWhatsappNotConfigured = errors.New("whatsapp client not configured")
	ErrWhatsappUpstream      = errors.New("whatsapp upstream error")
)

// Config del gateway de mensajería saliente.
type Config struct {
	BaseURL string
	APIKey  string

	// Si está vacío, se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Client entrega códigos OTP al paciente vía el gateway de WhatsApp.
// Implementa notify.Dispatcher.
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

type sendOTPRequest struct {
	To       string `json:"to"`
	Template string `json:"template"`
	Code     string `json:"code"`
	UserID   string `json:"userId,omitempty"`
}

// SendOTP envía el código de verificación al teléfono del paciente.
// El código nunca se loguea acá; si hace falta debug se usa el dispatcher
// de consola en dev.
func (c *Client) SendOTP(ctx context.Context, patientID, phone, code string) error {
	if !c.IsConfigured() {
		return ErrWhatsappNotConfigured
	}
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: missing phone or code", ErrWhatsappUpstream)
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	in := sendOTPRequest{
		To:       phone,
		Template: "access-otp",
		Code:     code,
		UserID:   patientID,
	}

	err := c.http.DoJSON(ctx, http.MethodPost, "/v1/messages/otp", headers, in, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWhatsappUpstream, err)
	}
	return nil
}
