package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"healsync/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("sessions verifier not configured")
	ErrInvalidToken  = errors.New("invalid session token")
)

// Config del verificador de sesiones. El secreto lo comparte el servicio
// que emite las sesiones del portal (externo al core).
type Config struct {
	Secret string
	Issuer string

	// Leeway tolera pequeños desfasajes de reloj entre servicios.
	Leeway time.Duration
}

// Verifier valida el JWT de sesión del portal y extrae la identidad.
// Un solo credencial firmado con claim de rol, verificado server-side en
// cada request: nunca se confía en rol/id asertados por el cliente.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewVerifier(cfg Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrNotConfigured
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: leeway,
	}, nil
}

type sessionClaims struct {
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return auth.Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := auth.Role(strings.TrimSpace(claims.Role))
	switch role {
	case auth.RolePatient, auth.RoleDoctor, auth.RolePharmacy, auth.RoleHospital:
		// ok
	default:
		return auth.Claims{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return auth.Claims{
		UserID: userID,
		Role:   role,
		Phone:  strings.TrimSpace(claims.Phone),
	}, nil
}
