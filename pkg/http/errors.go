package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`             // Machine-readable error code
	Message string            `json:"message"`           // Human-readable message
	Details string            `json:"details,omitempty"` // Development-only context
	Fields  map[string]string `json:"fields,omitempty"`  // Per-field validation failures
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeErrorResponse(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	writeErrorResponse(w, statusCode, ErrorResponse{Error: errorCode, Message: message, Details: details})
}

// WriteValidationError writes a 400 listing each rejected field.
func WriteValidationError(w http.ResponseWriter, fields map[string]string) {
	writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Validation failed",
		Fields:  fields,
	})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// SuccessResponse wraps payloads returned by the API.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	WriteJSON(w, statusCode, SuccessResponse{Success: true, Message: message, Data: data})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteLocked(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusLocked, "account_locked", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
