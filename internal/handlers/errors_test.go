package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestErrorResponder_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("get appointment: %w", models.ErrNotFound), http.StatusNotFound, "not_found"},
		{models.ErrConflict, http.StatusConflict, "conflict"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{models.ErrSlotTaken, http.StatusBadRequest, "slot_taken"},
		{models.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
		{models.ErrResetTokenInvalid, http.StatusBadRequest, "invalid_reset_token"},
		{&auth.LockedError{Remaining: 61 * time.Minute}, http.StatusLocked, "account_locked"},
		{models.ErrDependency, http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			testResponder().Respond(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			AssertErrorResponse(t, w, tt.status, tt.code)
		})
	}
}

func TestErrorResponder_HidesDetailsInProduction(t *testing.T) {
	cause := errors.New("pq: relation \"appointments\" does not exist")

	w := httptest.NewRecorder()
	testResponder().Respond(w, httptest.NewRequest(http.MethodGet, "/", nil), cause)
	resp := AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
	assert.Empty(t, resp.Details)
	assert.NotContains(t, w.Body.String(), "relation")

	dev := NewErrorResponder(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	w = httptest.NewRecorder()
	dev.Respond(w, httptest.NewRequest(http.MethodGet, "/", nil), cause)
	resp = AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
	assert.Contains(t, resp.Details, "relation")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	ok := pingerFunc(func(ctx context.Context) error { return nil })
	down := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	w := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"core": ok, "content": ok}, testResponder()).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"core": ok, "content": down}, testResponder()).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
	assert.NotContains(t, w.Body.String(), "connection refused")
}
