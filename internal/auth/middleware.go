package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/carepoint/internal/models"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// PrincipalContextKey is the key for storing the authenticated caller in context
	PrincipalContextKey contextKey = "principal"
)

// TokenVerifier resolves a bearer token to a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// Authenticate validates the bearer token and injects the principal into context
func Authenticate(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteError(w, http.StatusUnauthorized, "missing_token", "Access denied. No token provided.")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid authorization header format")
				return
			}

			principal, err := verifier.Verify(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				writeVerifyError(w, r, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeVerifyError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token expired")
	case errors.Is(err, models.ErrTokenInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
	case errors.Is(err, models.ErrAccountNotFound):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "Token is no longer valid")
	case errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteError(w, http.StatusUnauthorized, "account_inactive", "Account is inactive")
	case errors.Is(err, models.ErrPasswordChangedSince):
		pkghttp.WriteError(w, http.StatusUnauthorized, "password_changed", "Password recently changed. Please log in again.")
	default:
		logger.ErrorContext(r.Context(), "token verification failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// RequirePermission rejects callers whose role does not grant perm. It must run after Authenticate.
func RequirePermission(perm models.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !principal.Role.Can(perm) {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	principal, ok := ctx.Value(PrincipalContextKey).(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}
