package service

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/kursadbilgin/medtransit/internal/domain"
)

const (
	minPIN = 1000
	maxPIN = 9999
)

// PinGuard issues and checks the 4-digit delivery confirmation code. It is an
// operational code shared out-of-band with the receiver, not a credential.
type PinGuard struct {
	intN func(n int) int
}

func NewPinGuard() *PinGuard {
	return &PinGuard{intN: rand.IntN}
}

// Generate returns a PIN drawn uniformly from 1000-9999.
func (g *PinGuard) Generate() string {
	return strconv.Itoa(minPIN + g.intN(maxPIN-minPIN+1))
}

// Validate succeeds only on exact equality with the stored PIN.
func (g *PinGuard) Validate(stored *string, supplied string) error {
	if stored == nil || *stored == "" {
		return domain.ErrPinMissing
	}
	if strings.TrimSpace(supplied) == "" {
		return domain.ErrPinRequired
	}
	if supplied != *stored {
		return domain.ErrPinMismatch
	}
	return nil
}

func pinRejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPinMissing):
		return "missing"
	case errors.Is(err, domain.ErrPinRequired):
		return "required"
	case errors.Is(err, domain.ErrPinMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrPinAttemptsExceeded):
		return "attempts_exceeded"
	default:
		return "other"
	}
}
