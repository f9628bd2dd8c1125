package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"healsync/internal/ports/auth"
)

const testSecret = "test-secret-please-rotate"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestVerifier_ValidToken(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "healsync-portal"})
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "patient-1",
		"role":  "patient",
		"phone": "+51999000111",
		"iss":   "healsync-portal",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UserID != "patient-1" || claims.Role != auth.RolePatient || claims.Phone != "+51999000111" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifier_RejectsBadTokens(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}

	cases := map[string]string{
		"wrong secret": signToken(t, "other-secret", jwt.MapClaims{
			"sub": "patient-1", "role": "patient", "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": signToken(t, testSecret, jwt.MapClaims{
			"sub": "patient-1", "role": "patient", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"missing exp": signToken(t, testSecret, jwt.MapClaims{
			"sub": "patient-1", "role": "patient",
		}),
		"missing subject": signToken(t, testSecret, jwt.MapClaims{
			"role": "patient", "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"unknown role": signToken(t, testSecret, jwt.MapClaims{
			"sub": "x", "role": "superuser", "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"garbage": "not-a-jwt",
		"empty":   "",
	}

	for name, token := range cases {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifier_RejectsWrongIssuer(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "healsync-portal"})
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "patient-1", "role": "patient", "iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
