package grants

import (
	"strings"
	"time"
)

// ExpiryPolicy es un enum cerrado: duraciones de 1 hora a 30 días, o el
// sentinel "until_revoked". Cualquier otro valor se rechaza en la emisión.
type ExpiryPolicy string

const (
	Expiry1Hour        ExpiryPolicy = "1hour"
	Expiry6Hours       ExpiryPolicy = "6hours"
	Expiry12Hours      ExpiryPolicy = "12hours"
	Expiry24Hours      ExpiryPolicy = "24hours"
	Expiry3Days        ExpiryPolicy = "3days"
	Expiry7Days        ExpiryPolicy = "7days"
	Expiry14Days       ExpiryPolicy = "14days"
	Expiry30Days       ExpiryPolicy = "30days"
	ExpiryUntilRevoked ExpiryPolicy = "until_revoked"
)

var expiryDurations = map[ExpiryPolicy]time.Duration{
	Expiry1Hour:   time.Hour,
	Expiry6Hours:  6 * time.Hour,
	Expiry12Hours: 12 * time.Hour,
	Expiry24Hours: 24 * time.Hour,
	Expiry3Days:   3 * 24 * time.Hour,
	Expiry7Days:   7 * 24 * time.Hour,
	Expiry14Days:  14 * 24 * time.Hour,
	Expiry30Days:  30 * 24 * time.Hour,
}

// Alias cortos que manda el formulario del doctor ("7d") además de los
// largos del formulario del paciente ("7days"). Misma política, dos UIs.
var expiryAliases = map[string]ExpiryPolicy{
	"1h":  Expiry1Hour,
	"6h":  Expiry6Hours,
	"12h": Expiry12Hours,
	"1d":  Expiry24Hours,
	"24h": Expiry24Hours,
	"3d":  Expiry3Days,
	"7d":  Expiry7Days,
	"14d": Expiry14Days,
	"30d": Expiry30Days,
}

func ParseExpiryPolicy(raw string) (ExpiryPolicy, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidInput
	}
	p := ExpiryPolicy(s)
	if p == ExpiryUntilRevoked {
		return p, nil
	}
	if _, ok := expiryDurations[p]; ok {
		return p, nil
	}
	if alias, ok := expiryAliases[s]; ok {
		return alias, nil
	}
	return "", ErrInvalidInput
}

// Duration devuelve la duración y ok=false para until_revoked.
func (p ExpiryPolicy) Duration() (time.Duration, bool) {
	d, ok := expiryDurations[p]
	return d, ok
}

// ExpiresAt calcula el deadline absoluto; nil para until_revoked.
func (p ExpiryPolicy) ExpiresAt(now time.Time) *time.Time {
	d, ok := expiryDurations[p]
	if !ok {
		return nil
	}
	t := now.Add(d)
	return &t
}
