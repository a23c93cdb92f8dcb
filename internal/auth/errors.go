// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import "errors"

// Sentinel errors. Callers match them with errors.Is; oops codes carry the detail.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUnauthorized is returned for bad credentials or an invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired is returned when a recovery token is past its expiry or was never issued.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when a presented recovery token does not match.
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden is returned when an identity lacks a required role.
	ErrForbidden = errors.New("forbidden")

	// ErrRoleNotFound is returned when registration names a role that does not exist.
	// It is an internal failure, not a client error.
	ErrRoleNotFound = errors.New("role not found")
)
