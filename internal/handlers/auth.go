package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/services"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Profile(ctx context.Context, accountID string) (*models.Admin, error)
	UpdateProfile(ctx context.Context, accountID string, u services.ProfileUpdate) (*models.Admin, error)
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, ip string) (*services.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	SetupMFA(ctx context.Context, accountID string) (*auth.Enrollment, error)
	EnableMFA(ctx context.Context, accountID, code string) error
	DisableMFA(ctx context.Context, accountID, password, code string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
	errors  *ErrorResponder
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, errors *ErrorResponder) *AuthHandler {
	return &AuthHandler{service: service, errors: errors}
}

// Request DTOs

// LoginRequest accepts either a username or an email as the identifier.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
	OTP      string `json:"otp" validate:"omitempty,len=6,numeric"`
}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName" validate:"omitempty,max=100,personname"`
	LastName  string `json:"lastName" validate:"omitempty,max=100,personname"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,max=128"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// Login handles admin login
// @Summary Admin login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 423 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Identifier: strings.TrimSpace(req.Username),
		Password:   req.Password,
		OTP:        req.OTP,
		IPAddress:  pkghttp.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Login successful", result)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	admin, err := h.service.Profile(r.Context(), principal.AccountID)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", admin.Summary())
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	admin, err := h.service.UpdateProfile(r.Context(), principal.AccountID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Profile updated", admin.Summary())
}

// ChangePassword verifies the current password and returns a fresh token;
// tokens issued before the change stop working.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	result, err := h.service.ChangePassword(r.Context(), principal.AccountID, req.CurrentPassword, req.NewPassword, pkghttp.ClientIP(r))
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Password changed successfully", result)
}

// Logout is an acknowledgement; tokens are stateless and the client discards them.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), strings.ToLower(req.Email)); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	// Same response whether or not the address is registered
	pkghttp.WriteSuccess(w, http.StatusAccepted, "If that email belongs to an account, a reset link has been sent.", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Password has been reset. Please log in.", nil)
}
