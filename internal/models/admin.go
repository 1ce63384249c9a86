package models

import (
	"time"
)

// Admin is a back-office account. PasswordHash and MFASecret never leave the service layer.
type Admin struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Role              Role
	IsActive          bool
	Lockout           LockoutState
	LastLoginAt       *time.Time
	PasswordChangedAt time.Time
	MFAEnabled        bool
	MFASecret         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LockoutState tracks consecutive failed logins and the current lock, if any.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLocked reports whether a lock is in force at now.
func (s LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// AdminSummary is the public projection of an Admin.
type AdminSummary struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"isActive"`
	MFAEnabled  bool       `json:"mfaEnabled"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (a *Admin) Summary() AdminSummary {
	return AdminSummary{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Role:        a.Role,
		IsActive:    a.IsActive,
		MFAEnabled:  a.MFAEnabled,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	AccountID string
	Username  string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
}

type PasswordReset struct {
	AdminID   string
	TokenHash string
	ExpiresAt time.Time
}
