// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RoleService resolves and manages roles.
type RoleService struct {
	store  *CredentialStore
	logger *slog.Logger
}

// NewRoleService creates a RoleService.
func NewRoleService(store *CredentialStore, opts ...Option) (*RoleService, error) {
	if store == nil {
		return nil, oops.Code("ROLE_SERVICE_INVALID").Errorf("credential store is required")
	}
	o := buildOptions(opts)
	return &RoleService{store: store, logger: o.logger}, nil
}

// FindByName returns the role with the given name or an ErrNotFound error.
func (s *RoleService) FindByName(ctx context.Context, name string) (*Role, error) {
	role, err := s.store.FindRoleByName(ctx, name)
	if err != nil {
		return nil, oops.With("operation", "find role by name").With("name", name).Wrap(err)
	}
	return role, nil
}

// FindByID returns the role with the given ID or an ErrNotFound error.
func (s *RoleService) FindByID(ctx context.Context, id ulid.ULID) (*Role, error) {
	role, err := s.store.FindRoleByID(ctx, id)
	if err != nil {
		return nil, oops.With("operation", "find role by id").With("id", id.String()).Wrap(err)
	}
	return role, nil
}

// Create persists a new role.
func (s *RoleService) Create(ctx context.Context, name, description string) (*Role, error) {
	if name == "" {
		return nil, oops.Code("ROLE_INVALID_NAME").Errorf("role name cannot be empty")
	}
	role := &Role{ID: ulid.Make(), Name: name, Description: description}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, oops.Code("ROLE_CREATE_FAILED").With("name", name).Wrap(err)
	}
	return role, nil
}

// List returns all roles.
func (s *RoleService) List(ctx context.Context) ([]*Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, oops.Code("ROLE_LIST_FAILED").Wrap(err)
	}
	return roles, nil
}

// Update merges the patch onto an existing role and persists it.
func (s *RoleService) Update(ctx context.Context, id ulid.ULID, patch RolePatch) (*Role, error) {
	role, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, oops.Code("ROLE_INVALID_NAME").Errorf("role name cannot be empty")
		}
		role.Name = *patch.Name
	}
	if patch.Description != nil {
		role.Description = *patch.Description
	}
	if err := s.store.SaveRole(ctx, role); err != nil {
		return nil, oops.With("operation", "save role").With("id", id.String()).Wrap(err)
	}
	return role, nil
}

// Remove deletes a role by ID.
func (s *RoleService) Remove(ctx context.Context, id ulid.ULID) error {
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return oops.With("operation", "delete role").With("id", id.String()).Wrap(err)
	}
	return nil
}
