package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/handlers"
	"github.com/BradenHooton/carepoint/internal/middleware"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/observability"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Appointments *handlers.AppointmentHandler
	Content      *handlers.ContentHandler
	Admins       *handlers.AdminHandler
	Health       *handlers.HealthHandler
}

// Options configures the middleware stack.
type Options struct {
	Logger         *slog.Logger
	Verifier       auth.TokenVerifier
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	Production     bool
	RequestTimeout time.Duration
}

// NewRouter builds the chi router with the full middleware stack and all routes.
func NewRouter(h Handlers, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.SecureLogger(opts.Logger))
	router.Use(observability.Recover(opts.Logger))
	router.Use(middleware.SecurityHeaders(opts.Production))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chimw.Timeout(opts.RequestTimeout))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	router.Get("/health", h.Health.Health)

	router.Group(func(r chi.Router) {
		r.Use(opts.Limiter.General())
		RegisterRoutes(r, h, opts)
	})
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	// Public routes - no authentication required
	router.With(opts.Limiter.Login()).Post("/auth/login", h.Auth.Login)
	router.With(opts.Limiter.Form()).Post("/auth/forgot-password", h.Auth.ForgotPassword)
	router.With(opts.Limiter.Form()).Post("/auth/reset-password", h.Auth.ResetPassword)

	router.With(opts.Limiter.Appointment()).Post("/appointments", h.Appointments.Create)
	router.Get("/appointments/availability", h.Appointments.Availability)
	router.With(opts.Limiter.Form()).Post("/contact", h.Content.SubmitContact)
	router.With(opts.Limiter.Form()).Post("/reviews", h.Content.SubmitReview)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(opts.Verifier, opts.Logger))

		r.Get("/auth/profile", h.Auth.Profile)
		r.Put("/auth/profile", h.Auth.UpdateProfile)
		r.Put("/auth/change-password", h.Auth.ChangePassword)
		r.Post("/auth/logout", h.Auth.Logout)
		r.Post("/auth/mfa/setup", h.Auth.SetupMFA)
		r.Post("/auth/mfa/enable", h.Auth.EnableMFA)
		r.Post("/auth/mfa/disable", h.Auth.DisableMFA)

		r.With(auth.RequirePermission(models.PermViewAppointments)).Get("/appointments", h.Appointments.List)
		r.With(auth.RequirePermission(models.PermViewAppointments)).Get("/appointments/{id}", h.Appointments.Get)
		r.With(auth.RequirePermission(models.PermManageAppointments)).Put("/appointments/{id}", h.Appointments.Update)
		r.With(auth.RequirePermission(models.PermDeleteAppointments)).Delete("/appointments/{id}", h.Appointments.Delete)

		r.Route("/admin", func(r chi.Router) {
			r.With(auth.RequirePermission(models.PermViewDashboard)).Get("/dashboard", h.Appointments.Dashboard)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(models.PermManageContacts))
				r.Get("/contacts", h.Content.ListContacts)
				r.Put("/contacts/{id}", h.Content.UpdateContact)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(models.PermManageReviews))
				r.Get("/reviews", h.Content.ListReviews)
				r.Delete("/reviews/{id}", h.Content.DeleteReview)
			})

			// Super-admin only
			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(models.PermManageAdmins))
				r.Get("/admins", h.Admins.List)
				r.Post("/admins", h.Admins.Create)
				r.Put("/admins/{id}", h.Admins.Update)
				r.Delete("/admins/{id}", h.Admins.Deactivate)
			})
		})
	})
}
