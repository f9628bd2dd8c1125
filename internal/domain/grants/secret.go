package grants

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Base62: URL-safe, sin caracteres ambiguos de escape.
	secretAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	secretLength   = 48
	shortCodeLen   = 6
)

// newSecret genera el bearer token completo con crypto/rand.
func newSecret() (string, error) {
	out := make([]byte, secretLength)
	alphabetLen := big.NewInt(int64(len(secretAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generate secret: %w", err)
		}
		out[i] = secretAlphabet[n.Int64()]
	}
	return string(out), nil
}

// newDigits genera n dígitos decimales aleatorios (short codes y OTPs).
func newDigits(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate digits: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

func newShortCode() (string, error) { return newDigits(shortCodeLen) }
func newOTP() (string, error)       { return newDigits(6) }
