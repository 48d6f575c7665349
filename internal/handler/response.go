package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prn-tf/meridian-users/internal/service"
)

// APIError is the JSON error body returned by every endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, service.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "user_exists", "nickname or email already in use")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, service.ErrUserInactive):
		writeError(w, http.StatusForbidden, "user_inactive", "account is not active")
	case errors.Is(err, service.ErrUserBlocked):
		writeError(w, http.StatusForbidden, "user_blocked", "account is blocked")
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, service.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session_expired", "session has expired")
	case errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidNickname),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidTheme),
		errors.Is(err, service.ErrInvalidFontScale),
		errors.Is(err, service.ErrInvalidLanguage):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
