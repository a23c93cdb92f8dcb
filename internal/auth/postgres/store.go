// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guideli/guideli/internal/auth"
)

// NewCredentialStore wires the PostgreSQL repositories and transactor for
// pool into an auth.CredentialStore.
func NewCredentialStore(pool *pgxpool.Pool, hasher auth.PasswordHasher) (*auth.CredentialStore, error) {
	return auth.NewCredentialStore(
		NewUserRepository(pool),
		NewProfileRepository(pool),
		NewRoleRepository(pool),
		NewTransactor(pool),
		hasher,
	)
}
