package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes surfaced to callers. The client distinguishes conflict-type
// failures (re-query availability, pick another candidate) from input and
// permission errors, so each class gets a stable code.
const (
	CodeInvalidQuery        = "INVALID_QUERY"
	CodeInvalidInterval     = "INVALID_INTERVAL"
	CodeInvalidDuration     = "INVALID_DURATION"
	CodeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	CodeSlotConflict        = "SLOT_CONFLICT"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeForbidden           = "FORBIDDEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}
