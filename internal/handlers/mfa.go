package handlers

import (
	"net/http"

	"github.com/BradenHooton/carepoint/internal/auth"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
)

type MFAEnableRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type MFADisableRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// SetupMFA returns a new secret with its otpauth URL and QR code. The secret
// is not active until confirmed through EnableMFA.
func (h *AuthHandler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	enrollment, err := h.service.SetupMFA(r.Context(), principal.AccountID)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Scan the QR code and confirm with a code", enrollment)
}

func (h *AuthHandler) EnableMFA(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req MFAEnableRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	if err := h.service.EnableMFA(r.Context(), principal.AccountID, req.Code); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "MFA enabled", nil)
}

func (h *AuthHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req MFADisableRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	if err := h.service.DisableMFA(r.Context(), principal.AccountID, req.Password, req.Code); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "MFA disabled", nil)
}
