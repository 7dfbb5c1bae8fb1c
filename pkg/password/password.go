// Package password hashes and verifies user secrets and enforces a
// minimum entropy on new passwords.
package password

import (
	"errors"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinCost     = bcrypt.MinCost
	MaxCost     = bcrypt.MaxCost
	DefaultCost = 12

	// MaxPasswordLength bounds input before hashing. bcrypt truncates at
	// 72 bytes anyway; rejecting earlier keeps the behavior explicit.
	MaxPasswordLength = 128

	// MinEntropyBits is the strength floor for new passwords.
	MinEntropyBits = 60
)

// Compare verifies a plaintext secret against its stored bcrypt hash.
// The comparison is constant time with respect to the secret.
func Compare(encodedHash, secret string) error {
	if len(encodedHash) == 0 {
		return errors.New("encoded hash must not be empty")
	}
	if len(secret) == 0 {
		return errors.New("password must not be empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret))
}

type HashOptions struct {
	Cost int
}

type HashOpt func(options *HashOptions)

// WithCost sets the bcrypt cost factor. Out-of-range values keep the
// default.
func WithCost(cost int) HashOpt {
	return func(options *HashOptions) {
		if cost >= MinCost && cost <= MaxCost {
			options.Cost = cost
		}
	}
}

// Hash derives the bcrypt hash stored in password events.
func Hash(secret string, opts ...HashOpt) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("password must not be empty")
	}
	if len(secret) > MaxPasswordLength {
		return "", errors.New("password too long")
	}

	options := &HashOptions{Cost: DefaultCost}
	for _, opt := range opts {
		opt(options)
	}

	encodedHash, err := bcrypt.GenerateFromPassword([]byte(secret), options.Cost)
	if err != nil {
		return "", err
	}
	return string(encodedHash), nil
}

// ValidateStrength rejects passwords below the entropy floor.
func ValidateStrength(secret string) error {
	return passwordvalidator.Validate(secret, MinEntropyBits)
}
