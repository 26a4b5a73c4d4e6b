// Error handling utilities for the admin API.

package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/config"
	"github.com/getmockd/mockd-chaos/pkg/httputil"
)

// Safe error messages for client responses.
const (
	// ErrMsgInternalError is returned for unexpected internal errors.
	ErrMsgInternalError = "An internal error occurred"

	// ErrMsgInvalidJSON is returned for JSON parsing errors.
	ErrMsgInvalidJSON = "Invalid JSON in request body"

	// ErrMsgInvalidConfig is returned when a reload is rejected.
	ErrMsgInvalidConfig = "Route configuration rejected; previous routes are still active"

	// ErrMsgReloadUnavailable is returned when no reloader is configured.
	ErrMsgReloadUnavailable = "Reload is not available on this server"
)

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, errCode, message string, details ...string) {
	httputil.WriteJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
		Details: details,
	})
}

// isConfigError reports whether err describes a problem with submitted
// routes rather than with the server.
func isConfigError(err error) bool {
	var verr *config.ValidationError
	var perr *chaos.PatternError
	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		return true
	}
	for _, target := range []error{
		config.ErrFileNotFound, config.ErrInvalidJSON, config.ErrInvalidYAML,
		config.ErrEmptyFile, config.ErrInlineInclude, config.ErrNoConfig,
		chaos.ErrInvalidDistribution, chaos.ErrInvalidProbability, chaos.ErrInvalidStatusCode,
		chaos.ErrUnknownFaultKind, chaos.ErrInvalidMethod, chaos.ErrEmptyTag,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// configErrorDetails lists the individual problems of a rejected reload.
func configErrorDetails(err error) []string {
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		details := make([]string, len(verr.Errors))
		for i, fe := range verr.Errors {
			details[i] = fe.Error()
		}
		return details
	}
	return []string{err.Error()}
}

// sanitizeError logs err server-side and returns a generic message.
func sanitizeError(err error, log *slog.Logger, operation string) string {
	if log != nil {
		log.Error("operation failed", "operation", operation, "error", err)
	}
	return ErrMsgInternalError
}
