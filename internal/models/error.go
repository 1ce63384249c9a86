package models

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrDependency     = errors.New("dependency unavailable")

	// Login and account state errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrMFARequired        = errors.New("mfa code required")
	ErrInvalidMFACode     = errors.New("invalid mfa code")
	ErrSelfDeactivation   = errors.New("cannot deactivate own account")
	ErrMFANotConfigured   = errors.New("mfa is not configured on this server")

	// Token verification errors
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrPasswordChangedSince = errors.New("password changed after token was issued")
	ErrResetTokenInvalid    = errors.New("reset token is invalid or expired")

	// Appointment errors
	ErrSlotTaken         = errors.New("time slot is already booked")
	ErrSlotInPast        = errors.New("appointment date is in the past")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ErrOrNil returns nil when no field failed.
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}
