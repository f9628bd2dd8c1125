package grants

import (
	"errors"
	"testing"
	"time"
)

func TestParseExpiryPolicy_AcceptsCanonicalAndAliases(t *testing.T) {
	cases := map[string]ExpiryPolicy{
		"1hour":         Expiry1Hour,
		"24hours":       Expiry24Hours,
		"until_revoked": ExpiryUntilRevoked,
		"1h":            Expiry1Hour,
		"1d":            Expiry24Hours,
		"24h":           Expiry24Hours,
		"7d":            Expiry7Days,
		"30d":           Expiry30Days,
		" 7Days ":       Expiry7Days, // normaliza espacios y mayúsculas
	}
	for raw, want := range cases {
		got, err := ParseExpiryPolicy(raw)
		if err != nil {
			t.Fatalf("ParseExpiryPolicy(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseExpiryPolicy(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseExpiryPolicy_RejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "2fortnights", "90days", "0h"} {
		if _, err := ParseExpiryPolicy(raw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseExpiryPolicy(%q): expected ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestExpiryPolicy_ExpiresAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	got := Expiry3Days.ExpiresAt(now)
	if got == nil || !got.Equal(now.Add(3*24*time.Hour)) {
		t.Fatalf("3days: expected %v, got %v", now.Add(3*24*time.Hour), got)
	}

	if ExpiryUntilRevoked.ExpiresAt(now) != nil {
		t.Fatalf("until_revoked must have nil deadline")
	}
	if _, ok := ExpiryUntilRevoked.Duration(); ok {
		t.Fatalf("until_revoked has no duration")
	}
}
