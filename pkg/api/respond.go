package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/harun/beacon/internal/tracing"
	"github.com/harun/beacon/pkg/auth"
	"github.com/harun/beacon/pkg/directory"
	"github.com/harun/beacon/pkg/location"
)

// errBadRequest marks a body that could not be decoded
var errBadRequest = errors.New("invalid request body")

// messageResponse is the body of every error reply
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error category to an HTTP status and client message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusBadRequest, "Email and password required"
	case errors.Is(err, directory.ErrUserExists):
		return http.StatusBadRequest, "User already exists"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, location.ErrInvalidPosition):
		return http.StatusBadRequest, "Invalid location. Send [latitude, longitude]"
	case errors.Is(err, location.ErrSelfReference):
		return http.StatusBadRequest, "You cannot share your location with yourself"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, auth.ErrAuthFailure):
		return http.StatusUnauthorized, "Token is not valid"
	case errors.Is(err, location.ErrNotFound):
		return http.StatusNotFound, "Call /initialize first to start tracking"
	case errors.Is(err, directory.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)

	logger := tracing.LoggerFromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	writeJSON(w, status, messageResponse{Message: msg})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if errors.Is(err, location.ErrInvalidPosition) {
		return err
	}
	return errors.Join(errBadRequest, err)
}

// caller returns the identity set by the auth middleware
func caller(r *http.Request) location.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}
