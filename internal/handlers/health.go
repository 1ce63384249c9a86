package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	deps   map[string]Pinger
	errors *ErrorResponder
}

func NewHealthHandler(deps map[string]Pinger, errors *ErrorResponder) *HealthHandler {
	return &HealthHandler{deps: deps, errors: errors}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, dep := range h.deps {
		if err := dep.HealthCheck(ctx); err != nil {
			h.errors.Respond(w, r, fmt.Errorf("%w: %s: %v", models.ErrDependency, name, err))
			return
		}
	}
	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}
