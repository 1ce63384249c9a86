package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/carepoint/internal/config"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

// RateLimiter builds per-route-class limiters keyed by client IP. With a Redis
// client the counts are shared between instances; without one each process
// keeps its own.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	redis  *redis.Client
	logger *slog.Logger
}

// NewRateLimiter creates a RateLimiter. client may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, client *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{cfg: cfg, redis: client, logger: logger}
}

// Login limits POST /auth/login.
func (l *RateLimiter) Login() func(http.Handler) http.Handler {
	return l.limit("login", l.cfg.LoginMax, l.cfg.LoginWindow, "Too many login attempts, please try again later")
}

// Appointment limits public booking.
func (l *RateLimiter) Appointment() func(http.Handler) http.Handler {
	return l.limit("appointment", l.cfg.AppointmentMax, l.cfg.AppointmentWindow, "Too many appointment requests. Please try again later.")
}

// Form limits contact, review and password-reset submissions.
func (l *RateLimiter) Form() func(http.Handler) http.Handler {
	return l.limit("form", l.cfg.FormMax, l.cfg.FormWindow, "Too many submissions. Please try again later.")
}

// General applies to every API route.
func (l *RateLimiter) General() func(http.Handler) http.Handler {
	return l.limit("general", l.cfg.GeneralMax, l.cfg.GeneralWindow, "Too many requests. Please try again later.")
}

func (l *RateLimiter) limit(class string, max int, window time.Duration, message string) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			l.logger.Warn("rate limit exceeded",
				slog.String("class", class),
				slog.String("path", r.URL.Path),
				slog.String("ip", pkghttp.ClientIP(r)))
			pkghttp.WriteTooManyRequests(w, message)
		}),
	}
	if l.redis != nil {
		opts = append(opts, httprate.WithLimitCounter(NewRedisCounter(l.redis, "carepoint:ratelimit:"+class+":", l.logger)))
	}
	return httprate.Limit(max, window, opts...)
}
