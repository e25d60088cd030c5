package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request id; the client receives
// the mapped core.UserMessage so internals never leak.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/JonMunkholm/salesops/internal/coaching"
	"github.com/JonMunkholm/salesops/internal/core"
	"github.com/JonMunkholm/salesops/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form. A statusCode of 0
// picks the status from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	writeJSONStatus(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor maps known errors to HTTP statuses.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrNotCSV), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrValidationFailed), errors.Is(err, core.ErrInvalidEntry),
		errors.Is(err, core.ErrUnknownProducer), errors.Is(err, coaching.ErrNoActivity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, coaching.ErrCoachingDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, coaching.ErrLLMRequest), errors.Is(err, coaching.ErrUnparseable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeJSON writes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as the response body. Encoding errors are only
// logged since the header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Error("json encode error", "error", err)
	}
}
