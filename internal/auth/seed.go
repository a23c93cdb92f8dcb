// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// RoleSeed is a role guaranteed to exist after seeding.
type RoleSeed struct {
	Name        string `koanf:"name"`
	Description string `koanf:"description"`
}

// SuperAdminSeed is the account guaranteed to exist after seeding.
type SuperAdminSeed struct {
	Email     string `koanf:"email"`
	Password  string `koanf:"password"`
	FirstName string `koanf:"first_name"`
	LastName  string `koanf:"last_name"`
}

// SeedData is the startup data table.
type SeedData struct {
	Roles      []RoleSeed     `koanf:"roles"`
	SuperAdmin SuperAdminSeed `koanf:"super_admin"`
}

// DefaultRoles returns the built-in role set.
func DefaultRoles() []RoleSeed {
	return []RoleSeed{
		{Name: RoleSuperAdmin, Description: "Site Super Admin"},
		{Name: RoleAdmin, Description: "Site Admin"},
		{Name: RoleUser, Description: "Site User"},
	}
}

// SeedResult reports what a seed run created.
type SeedResult struct {
	RolesCreated      int
	SuperAdminCreated bool
}

// Seeder creates the default roles and the super-admin account when absent.
// Each step checks for existence first, so Run is safe on every start. It is not
// an atomic upsert; two concurrent runs may race.
type Seeder struct {
	roles    *RoleService
	identity *IdentityService
	logger   *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(roles *RoleService, identity *IdentityService, opts ...Option) (*Seeder, error) {
	if roles == nil {
		return nil, oops.Code("SEEDER_INVALID").Errorf("role service is required")
	}
	if identity == nil {
		return nil, oops.Code("SEEDER_INVALID").Errorf("identity service is required")
	}
	o := buildOptions(opts)
	return &Seeder{roles: roles, identity: identity, logger: o.logger}, nil
}

// Run seeds roles first, then the super-admin account.
func (s *Seeder) Run(ctx context.Context, data SeedData) (SeedResult, error) {
	var res SeedResult

	n, err := s.SeedRoles(ctx, data.Roles)
	res.RolesCreated = n
	if err != nil {
		return res, err
	}

	created, err := s.SeedSuperAdmin(ctx, data.SuperAdmin)
	res.SuperAdminCreated = created
	if err != nil {
		return res, err
	}

	s.logger.InfoContext(ctx, "seed complete",
		"roles_created", res.RolesCreated,
		"super_admin_created", res.SuperAdminCreated)
	return res, nil
}

// SeedRoles creates each role that does not exist yet and returns how many were created.
func (s *Seeder) SeedRoles(ctx context.Context, roles []RoleSeed) (int, error) {
	created := 0
	for _, r := range roles {
		_, err := s.roles.FindByName(ctx, r.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, oops.Code("SEED_ROLE_FAILED").With("role", r.Name).Wrap(err)
		}
		if _, err := s.roles.Create(ctx, r.Name, r.Description); err != nil {
			return created, oops.Code("SEED_ROLE_FAILED").With("role", r.Name).Wrap(err)
		}
		s.logger.InfoContext(ctx, "role seeded", "role", r.Name)
		created++
	}
	return created, nil
}

// SeedSuperAdmin creates the super-admin account, verified and with role
// super_admin, unless a user with that email exists. An empty email skips the step.
func (s *Seeder) SeedSuperAdmin(ctx context.Context, seed SuperAdminSeed) (bool, error) {
	if seed.Email == "" {
		return false, nil
	}
	_, err := s.identity.FindByEmail(ctx, seed.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, oops.Code("SEED_SUPER_ADMIN_FAILED").With("email", seed.Email).Wrap(err)
	}
	if seed.Password == "" {
		return false, oops.Code("SEED_SUPER_ADMIN_FAILED").
			With("email", seed.Email).
			Errorf("super admin password is required")
	}

	user, err := s.identity.Register(ctx, RegisterParams{
		Email:         seed.Email,
		Password:      seed.Password,
		FirstName:     seed.FirstName,
		LastName:      seed.LastName,
		Role:          RoleSuperAdmin,
		EmailVerified: true,
	})
	if err != nil {
		return false, oops.Code("SEED_SUPER_ADMIN_FAILED").With("email", seed.Email).Wrap(err)
	}
	s.logger.InfoContext(ctx, "super admin seeded", "user_id", user.ID.String())
	return true, nil
}
