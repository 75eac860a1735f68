package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pramana-labs/pramana/internal/apierr"
)

// ErrorResponse is the standard JSON error envelope: {error, request_id, message}.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// RespondError writes a JSON error response with an explicit code/status.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondErrWithRequestID writes err as a JSON error response, translating a
// declared *apierr.Error to its own status/code and falling back to 500 for
// anything else. The body never carries more than a stable code, a message,
// and the request id — no stack traces, even for unexpected errors.
func RespondErrWithRequestID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	requestID := RequestIDFromContext(r.Context())

	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			logger.Error("request failed", "code", apiErr.Code, "error", err, "request_id", requestID)
		}
		Respond(w, apiErr.Status, ErrorResponse{
			Error:     apiErr.Code,
			Message:   apiErr.Message,
			RequestID: requestID,
		})
		return
	}

	logger.Error("unhandled request error", "error", err, "request_id", requestID)
	Respond(w, http.StatusInternalServerError, ErrorResponse{
		Error:     "internal",
		RequestID: requestID,
	})
}
