// Package password hashes and verifies account passwords.
//
// Passwords are pre-hashed with HMAC-SHA256 under a server-wide pepper
// before bcrypt. The pepper means a dumped users table alone is not enough
// to crack offline; the pre-hash also sidesteps bcrypt's 72-byte input cap.
package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength and MaxLength bound accepted password sizes.
	MinLength = 8
	MaxLength = 64
)

var (
	ErrTooShort = errors.New("password is too short")
	ErrTooLong  = errors.New("password is too long")
)

// Service hashes and verifies passwords under one pepper.
type Service struct {
	pepper []byte
}

func NewService(pepper []byte) *Service {
	return &Service{pepper: pepper}
}

// Validate checks format constraints before any hashing happens.
func (s *Service) Validate(password string) error {
	if len(password) < MinLength {
		return ErrTooShort
	}
	if len(password) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Hash produces the stored PHC string for a password.
func (s *Service) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(s.prehash(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether the password matches the stored hash.
func (s *Service) Verify(password, phc string) bool {
	return bcrypt.CompareHashAndPassword([]byte(phc), s.prehash(password)) == nil
}

func (s *Service) prehash(password string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	_, _ = mac.Write([]byte(password))
	return mac.Sum(nil)
}
