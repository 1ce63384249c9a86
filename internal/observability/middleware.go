package observability

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"

	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
)

// Recover turns a panic into a JSON 500 and reports it with its stack.
func Recover(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := middleware.GetReqID(r.Context())
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					scope.SetTag("request_id", requestID)
					scope.SetRequest(r)
					sentry.CaptureMessage("panic in request")
				})

				logger.Error("panic recovered",
					slog.String("request_id", requestID),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)

				pkghttp.WriteInternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
