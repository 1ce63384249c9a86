package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/observability"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponder maps service errors onto JSON error responses. Errors it does
// not recognise are logged, reported and answered with a generic 500.
type ErrorResponder struct {
	logger     *slog.Logger
	production bool
}

func NewErrorResponder(logger *slog.Logger, production bool) *ErrorResponder {
	return &ErrorResponder{logger: logger, production: production}
}

func (e *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	var locked *auth.LockedError

	switch {
	case errors.As(err, &ve):
		pkghttp.WriteValidationError(w, ve.Fields)
	case errors.As(err, &locked):
		pkghttp.WriteLocked(w, fmt.Sprintf("Account is temporarily locked. Try again in %d minutes.", locked.RemainingMinutes()))
	case errors.Is(err, models.ErrSlotTaken):
		pkghttp.WriteError(w, http.StatusBadRequest, "slot_taken", "This time slot is already booked. Please choose another time.")
	case errors.Is(err, models.ErrSlotInPast):
		pkghttp.WriteError(w, http.StatusBadRequest, "date_in_past", "Appointment date cannot be in the past")
	case errors.Is(err, models.ErrInvalidTransition):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_transition", "This status change is not allowed")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, models.ErrMFARequired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "mfa_required", "A one-time code is required")
	case errors.Is(err, models.ErrInvalidMFACode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_mfa_code", "Invalid one-time code")
	case errors.Is(err, models.ErrResetTokenInvalid):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_reset_token", "Reset link is invalid or has expired")
	case errors.Is(err, models.ErrSelfDeactivation):
		pkghttp.WriteError(w, http.StatusBadRequest, "self_deactivation", "You cannot deactivate your own account")
	case errors.Is(err, models.ErrMFANotConfigured):
		pkghttp.WriteError(w, http.StatusNotImplemented, "mfa_unavailable", "MFA is not available on this server")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Insufficient permissions")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrDependency):
		e.internal(w, r, err, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable")
	default:
		e.internal(w, r, err, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (e *ErrorResponder) internal(w http.ResponseWriter, r *http.Request, err error, status int, code, message string) {
	requestID := middleware.GetReqID(r.Context())
	e.logger.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", requestID),
		slog.Any("error", err))
	observability.CaptureError(r.Context(), err, map[string]string{"request_id": requestID, "path": r.URL.Path})

	if e.production {
		pkghttp.WriteError(w, status, code, message)
		return
	}
	pkghttp.WriteErrorWithDetails(w, status, code, message, err.Error())
}
