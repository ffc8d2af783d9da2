package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier hashes transaction pins one-way and match-tests them.
// The raw pin is never stored or returned.
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier returns a verifier using cost, clamped to bcrypt's valid range.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptVerifier{cost: cost}
}

func (v *BcryptVerifier) Hash(raw string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(digest), nil
}

// Matches reports whether raw hashes to digest. An empty digest never matches.
func (v *BcryptVerifier) Matches(raw, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(raw)) == nil
}

var ErrPinFormat = errors.New("bad transaction pin format")

// PinPolicy is the format rule a new transaction pin must satisfy.
type PinPolicy struct {
	Length int
}

func (p PinPolicy) Validate(pin string) error {
	if len(pin) != p.Length {
		return fmt.Errorf("%w: pin must be %d characters", ErrPinFormat, p.Length)
	}
	return nil
}
