package service

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password schemes selectable through configuration.
const (
	PasswordSchemePlain  = "plain"
	PasswordSchemeBcrypt = "bcrypt"
)

// PasswordScheme turns a password into its stored form and checks attempts against it.
type PasswordScheme interface {
	Encode(password string) (string, error)
	Matches(stored, attempt string) bool
}

// NewPasswordScheme resolves a configured scheme name. An empty name means plain.
func NewPasswordScheme(name string) (PasswordScheme, error) {
	switch name {
	case "", PasswordSchemePlain:
		return PlainPasswords{}, nil
	case PasswordSchemeBcrypt:
		return BcryptPasswords{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", name)
	}
}

// PlainPasswords stores passwords verbatim, keeping existing credential files readable.
type PlainPasswords struct{}

func (PlainPasswords) Encode(password string) (string, error) {
	return password, nil
}

func (PlainPasswords) Matches(stored, attempt string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(attempt)) == 1
}

// BcryptPasswords stores bcrypt hashes. Plaintext files written by PlainPasswords
// no longer authenticate under this scheme.
type BcryptPasswords struct {
	Cost int
}

func (p BcryptPasswords) Encode(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (BcryptPasswords) Matches(stored, attempt string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(attempt)) == nil
}
