// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// badRequest builds a client input error carrying message.
func badRequest(message string) error {
	return oops.Code("REQUEST_INVALID").With("reason", message).Wrap(errors.Join(errBadRequest, errors.New(message)))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return badRequest("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body required")
		}
		return badRequest("malformed request body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // client went away
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// errorStatus maps an error to its HTTP status and client-facing message.
// Internal failures get an opaque message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, clientMessage(err, "invalid request")
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusBadRequest, "email already registered"
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}

	switch errutil.Code(err) {
	case "AUTH_EMPTY_PASSWORD":
		return http.StatusBadRequest, "password cannot be empty"
	case "ROLE_INVALID_NAME":
		return http.StatusBadRequest, "role name cannot be empty"
	case "ROLE_NAME_EXISTS":
		return http.StatusConflict, "role name already exists"
	case "ROLE_IN_USE":
		return http.StatusConflict, "role is assigned to users"
	case "OAUTH_EXCHANGE_FAILED":
		return http.StatusUnauthorized, "authorization code rejected"
	case "OAUTH_USERINFO_FAILED", "OAUTH_PROFILE_INCOMPLETE":
		return http.StatusBadGateway, "identity provider error"
	}
	return http.StatusInternalServerError, "internal server error"
}

// clientMessage returns the reason recorded by badRequest, or fallback.
func clientMessage(err error, fallback string) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if reason, ok := oopsErr.Context()["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return fallback
}

// respondError writes the error envelope. Server errors are logged with their
// oops context; client errors are logged at debug.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			append([]any{"status", status}, errutil.Attrs(err)...)...)
	}
	respondJSON(w, status, Envelope{Success: false, Message: message})
}
