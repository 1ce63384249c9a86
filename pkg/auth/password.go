package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	ResetTokenLength  = 32 // 256 bits
	MinPasswordLen    = 8
	MaxPasswordLen    = 128
)

type Algorithm string

const (
	Bcrypt   Algorithm = "bcrypt"
	Argon2id Algorithm = "argon2id"
)

// ErrPasswordMismatch is returned for any failed comparison, including malformed hashes.
var ErrPasswordMismatch = errors.New("password does not match")

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"hospital1":    true,
	"football":     true,
	"trustno1":     true,
}

// Hasher creates password hashes with one configured algorithm.
type Hasher struct {
	alg         Algorithm
	bcryptCost  int
	argonParams *argon2id.Params
	dummy       string
}

func NewHasher(alg Algorithm, bcryptCost int) (*Hasher, error) {
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	h := &Hasher{alg: alg, bcryptCost: bcryptCost, argonParams: argon2id.DefaultParams}
	switch alg {
	case Bcrypt, Argon2id:
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", alg)
	}

	// Compared against when the account does not exist so both paths cost the same.
	dummy, err := h.Hash("carepoint-dummy-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	switch h.alg {
	case Argon2id:
		hash, err := argon2id.CreateHash(password, h.argonParams)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		return hash, nil
	default:
		hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		return string(hashedBytes), nil
	}
}

// DummyCompare burns the same work as a real comparison and always fails.
func (h *Hasher) DummyCompare(password string) {
	_ = ComparePassword(h.dummy, password+"\x00")
}

// ComparePassword verifies password against a bcrypt or argon2id hash, picked by prefix.
func ComparePassword(hashedPassword, password string) error {
	switch {
	case strings.HasPrefix(hashedPassword, "$argon2id$"):
		match, err := argon2id.ComparePasswordAndHash(password, hashedPassword)
		if err != nil || !match {
			return ErrPasswordMismatch
		}
		return nil
	case strings.HasPrefix(hashedPassword, "$2"):
		if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
			return ErrPasswordMismatch
		}
		return nil
	default:
		return ErrPasswordMismatch
	}
}

// GenerateResetToken returns a random URL-safe token and its SHA-256 digest for storage.
func GenerateResetToken() (token, digest string, err error) {
	bytes := make([]byte, ResetTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token = hex.EncodeToString(bytes)
	return token, HashToken(token), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidatePassword enforces strong password requirements
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	if len(password) < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errors = append(errors, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errors = append(errors, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errors = append(errors, "must contain at least one digit")
	}
	if !hasSpecial {
		errors = append(errors, "must contain at least one special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common, please choose a more unique password")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}
