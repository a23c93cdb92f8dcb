// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Transactor runs a function inside a single database transaction.
// Repository calls made with the context passed to fn join that transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CredentialStore is the persistence facade for users, profiles and roles.
// CreateUser and SaveUser hash User.Password whenever it is set, so a plaintext
// password never reaches a repository.
type CredentialStore struct {
	users    UserRepository
	profiles ProfileRepository
	roles    RoleRepository
	tx       Transactor
	hasher   PasswordHasher
	now      func() time.Time
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(
	users UserRepository,
	profiles ProfileRepository,
	roles RoleRepository,
	tx Transactor,
	hasher PasswordHasher,
) (*CredentialStore, error) {
	switch {
	case users == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("users repository is required")
	case profiles == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("profiles repository is required")
	case roles == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("roles repository is required")
	case tx == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("transactor is required")
	case hasher == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	return &CredentialStore{
		users:    users,
		profiles: profiles,
		roles:    roles,
		tx:       tx,
		hasher:   hasher,
		now:      time.Now,
	}, nil
}

// Hasher returns the password hasher used on writes.
func (s *CredentialStore) Hasher() PasswordHasher {
	return s.hasher
}

// InTransaction runs fn as one unit of work.
func (s *CredentialStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.InTransaction(ctx, fn)
}

// CreateProfile persists a new profile.
func (s *CredentialStore) CreateProfile(ctx context.Context, profile *Profile) error {
	now := s.now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	return s.profiles.Create(ctx, profile)
}

// SaveProfile re-persists a mutated profile.
func (s *CredentialStore) SaveProfile(ctx context.Context, profile *Profile) error {
	profile.UpdatedAt = s.now()
	return s.profiles.Update(ctx, profile)
}

// CreateUser hashes the pending password and persists a new user.
func (s *CredentialStore) CreateUser(ctx context.Context, user *User) error {
	if user.Password == "" && user.PasswordHash == "" {
		return oops.Code("USER_CREATE_FAILED").With("email", user.Email).Wrap(ErrEmptyPassword)
	}
	if err := s.hashPending(user); err != nil {
		return err
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return s.users.Create(ctx, user)
}

// SaveUser re-hashes the password if it changed and persists the user.
func (s *CredentialStore) SaveUser(ctx context.Context, user *User) error {
	if err := s.hashPending(user); err != nil {
		return err
	}
	user.UpdatedAt = s.now()
	return s.users.Update(ctx, user)
}

// hashPending replaces a pending plaintext password with its hash.
func (s *CredentialStore) hashPending(user *User) error {
	if user.Password == "" {
		return nil
	}
	hash, err := s.hasher.Hash(user.Password)
	if err != nil {
		return oops.Code("USER_HASH_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}

// FindUserByEmail retrieves a user by email.
func (s *CredentialStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, email)
}

// FindUserByEmailForUpdate retrieves and locks a user row. Use inside InTransaction.
func (s *CredentialStore) FindUserByEmailForUpdate(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmailForUpdate(ctx, email)
}

// FindUserByID retrieves a user by ID.
func (s *CredentialStore) FindUserByID(ctx context.Context, id ulid.ULID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// FindUserByIDForUpdate retrieves and locks a user row. Use inside InTransaction.
func (s *CredentialStore) FindUserByIDForUpdate(ctx context.Context, id ulid.ULID) (*User, error) {
	return s.users.GetByIDForUpdate(ctx, id)
}

// ListUsers returns all users.
func (s *CredentialStore) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// DeleteUser removes a user and its profile.
func (s *CredentialStore) DeleteUser(ctx context.Context, id ulid.ULID) error {
	return s.users.Delete(ctx, id)
}

// FindRoleByName retrieves a role by name.
func (s *CredentialStore) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	return s.roles.GetByName(ctx, name)
}

// FindRoleByID retrieves a role by ID.
func (s *CredentialStore) FindRoleByID(ctx context.Context, id ulid.ULID) (*Role, error) {
	return s.roles.GetByID(ctx, id)
}

// CreateRole persists a new role.
func (s *CredentialStore) CreateRole(ctx context.Context, role *Role) error {
	now := s.now()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now
	return s.roles.Create(ctx, role)
}

// SaveRole re-persists a mutated role.
func (s *CredentialStore) SaveRole(ctx context.Context, role *Role) error {
	role.UpdatedAt = s.now()
	return s.roles.Update(ctx, role)
}

// ListRoles returns all roles.
func (s *CredentialStore) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// DeleteRole removes a role.
func (s *CredentialStore) DeleteRole(ctx context.Context, id ulid.ULID) error {
	return s.roles.Delete(ctx, id)
}
