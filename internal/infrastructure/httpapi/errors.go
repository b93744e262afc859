package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	if code == "" {
		code = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: code, Message: message, Status: status})
}

// classify maps a domain error to its HTTP status and machine code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid_uuid"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(err, domain.ErrStore):
		return http.StatusInternalServerError, "redis_error"
	case errors.Is(err, domain.ErrSerialization):
		return http.StatusInternalServerError, "serialization_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeDomainError renders err and logs it. Server faults log at error level
// without leaking the cause to the client.
func writeDomainError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	status, code := classify(err)
	msg := err.Error()
	if code == "internal_error" {
		msg = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", code).Msg("request failed")
	} else {
		logger.Info().Err(err).Str("code", code).Msg("request rejected")
	}
	writeError(w, status, code, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
