package http

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/c360/osdugate/errors"
)

// errorResponse is the JSON error body returned to the SPA
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers already sent, nothing useful to do
		return
	}
}

// writeError writes a caller-facing error with an explicit message.
// Used for request validation failures where the message is ours.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Status: statusCode})
}

// writeUpstreamError maps an upstream failure to a status code and a
// sanitized message. Endpoint URLs, partition names, and query text stay
// in the logs, not in the response.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)

	s.logger.Warn("request failed",
		"path", r.URL.Path,
		"status", statusCode,
		"request_id", r.Header.Get(requestIDHeader),
		"error", err)

	writeError(w, statusCode, sanitize(err))
}

// statusFor maps error severity classes to HTTP status codes
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrUnauthorized):
		return http.StatusBadGateway
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		if strings.Contains(err.Error(), "timeout") ||
			strings.Contains(err.Error(), "deadline") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitize returns a safe message for external clients
func sanitize(err error) string {
	switch {
	case err == nil:
		return "internal server error"
	case errors.IsNotFound(err):
		return "resource not found"
	case stderrors.Is(err, errors.ErrUnauthorized):
		return "upstream authentication failed"
	case errors.IsInvalid(err):
		return "invalid request"
	case errors.IsTransient(err):
		if strings.Contains(err.Error(), "timeout") ||
			strings.Contains(err.Error(), "deadline") {
			return "request timeout"
		}
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}
