package server

import (
	"encoding/json"
	"net/http"

	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/logging"
)

// Error codes returned in the error body.
const (
	codeInvalidRequest = "invalid_request"
	codeInvalidEvent   = "invalid_event"
	codeBodyTooLarge   = "body_too_large"
	codeNotFound       = "not_found"
	codeNotConfigured  = "not_configured"
	codeReloadFailed   = "reload_failed"
	codeInternal       = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the failure.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: logging.GetRequestID(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
