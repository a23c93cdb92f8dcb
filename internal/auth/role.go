// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Default role names.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// Role is a named authorization class.
type Role struct {
	ID          ulid.ULID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RolePatch lists the role fields an update may change.
type RolePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RoleRepository manages role persistence.
type RoleRepository interface {
	// Create stores a new role.
	Create(ctx context.Context, role *Role) error

	// GetByID retrieves a role by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Role, error)

	// GetByName retrieves a role by its unique name.
	GetByName(ctx context.Context, name string) (*Role, error)

	// List returns all roles.
	List(ctx context.Context) ([]*Role, error)

	// Update persists the name and description of an existing role.
	Update(ctx context.Context, role *Role) error

	// Delete removes a role. Returns ErrNotFound if no row was affected.
	Delete(ctx context.Context, id ulid.ULID) error
}
