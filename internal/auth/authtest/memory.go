// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package authtest provides in-memory repositories and a transactor for tests of
// code built on auth.CredentialStore. They enforce the same constraints as the
// PostgreSQL schema: unique emails and role names, and foreign keys from users
// to roles and profiles.
package authtest

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

type userRow struct {
	user      auth.User
	profileID ulid.ULID
}

// DB is an in-memory database backing the repositories returned by its accessors.
type DB struct {
	mu       sync.Mutex
	users    map[ulid.ULID]userRow
	profiles map[ulid.ULID]auth.Profile
	roles    map[ulid.ULID]auth.Role
	faults   map[string]error
	reads    map[string]func()

	txMu sync.Mutex
}

// NewDB returns an empty database.
func NewDB() *DB {
	return &DB{
		users:    make(map[ulid.ULID]userRow),
		profiles: make(map[ulid.ULID]auth.Profile),
		roles:    make(map[ulid.ULID]auth.Role),
		faults:   make(map[string]error),
		reads:    make(map[string]func()),
	}
}

// Fail makes the next call to op return err. Ops are named "<table>.<method>",
// e.g. "users.Create" or "profiles.Update".
func (d *DB) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = err
}

// AfterRead runs fn after every successful read through op, outside the
// database lock. Ops are "users.GetByID", "users.GetByIDForUpdate",
// "users.GetByEmail" and "users.GetByEmailForUpdate". fn may block to hold a
// caller between its read and its write.
func (d *DB) AfterRead(op string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads[op] = fn
}

func (d *DB) afterRead(op string) {
	d.mu.Lock()
	fn := d.reads[op]
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *DB) fault(op string) error {
	if err, ok := d.faults[op]; ok {
		delete(d.faults, op)
		return err
	}
	return nil
}

// Counts returns the number of users, profiles and roles.
func (d *DB) Counts() (users, profiles, roles int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users), len(d.profiles), len(d.roles)
}

// Users returns the user repository.
func (d *DB) Users() *Users { return &Users{db: d} }

// Profiles returns the profile repository.
func (d *DB) Profiles() *Profiles { return &Profiles{db: d} }

// Roles returns the role repository.
func (d *DB) Roles() *Roles { return &Roles{db: d} }

// Transactor returns a transactor that serializes transactions and restores a
// snapshot when the function fails.
func (d *DB) Transactor() *Transactor { return &Transactor{db: d} }

// NewStore builds a CredentialStore over a fresh DB using FastHasher.
func NewStore(tb testing.TB) (*auth.CredentialStore, *DB) {
	tb.Helper()
	db := NewDB()
	store, err := auth.NewCredentialStore(db.Users(), db.Profiles(), db.Roles(), db.Transactor(), FastHasher{})
	if err != nil {
		tb.Fatalf("authtest: new credential store: %v", err)
	}
	return store, db
}

// SeedRoles inserts the default roles directly.
func (d *DB) SeedRoles() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range auth.DefaultRoles() {
		id := ulid.Make()
		d.roles[id] = auth.Role{ID: id, Name: r.Name, Description: r.Description}
	}
}

type txKey struct{}

// Transactor implements auth.Transactor for DB.
type Transactor struct {
	db *DB
}

// InTransaction runs fn holding the transaction lock. Nested calls join the outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mu.Lock()
	users, profiles, roles := maps.Clone(t.db.users), maps.Clone(t.db.profiles), maps.Clone(t.db.roles)
	t.db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.db.mu.Lock()
		t.db.users, t.db.profiles, t.db.roles = users, profiles, roles
		t.db.mu.Unlock()
		return err
	}
	return nil
}

// Users implements auth.UserRepository.
type Users struct {
	db *DB
}

func (d *DB) hydrate(row userRow) *auth.User {
	u := row.user
	if p, ok := d.profiles[row.profileID]; ok {
		u.Profile = &p
	}
	return &u
}

func (d *DB) roleNameExists(name string) bool {
	for _, r := range d.roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (d *DB) emailTaken(email string, except ulid.ULID) bool {
	for id, row := range d.users {
		if id != except && row.user.Email == email {
			return true
		}
	}
	return false
}

// Create implements auth.UserRepository.
func (r *Users) Create(_ context.Context, user *auth.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("users.Create"); err != nil {
		return err
	}
	if user.Profile == nil {
		return oops.Code("USER_CREATE_FAILED").Errorf("user has no profile")
	}
	if _, ok := r.db.profiles[user.Profile.ID]; !ok {
		return oops.Code("USER_CREATE_FAILED").Errorf("profile %s does not exist", user.Profile.ID)
	}
	if !r.db.roleNameExists(user.RoleName) {
		return oops.Code("USER_CREATE_FAILED").Errorf("role %q does not exist", user.RoleName)
	}
	if r.db.emailTaken(user.Email, user.ID) {
		return oops.Code("USER_EMAIL_EXISTS").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
	}
	row := userRow{user: *user, profileID: user.Profile.ID}
	row.user.Profile = nil
	r.db.users[user.ID] = row
	return nil
}

// GetByID implements auth.UserRepository.
func (r *Users) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return r.read("users.GetByID", func() (*auth.User, error) { return r.byID(id) })
}

// GetByIDForUpdate implements auth.UserRepository. Row locking is provided by
// the transaction lock.
func (r *Users) GetByIDForUpdate(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return r.read("users.GetByIDForUpdate", func() (*auth.User, error) { return r.byID(id) })
}

// GetByEmail implements auth.UserRepository.
func (r *Users) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.read("users.GetByEmail", func() (*auth.User, error) { return r.byEmail(email) })
}

// GetByEmailForUpdate implements auth.UserRepository. Row locking is provided
// by the transaction lock. Faults registered for "users.GetByEmail" apply here too.
func (r *Users) GetByEmailForUpdate(_ context.Context, email string) (*auth.User, error) {
	return r.read("users.GetByEmailForUpdate", func() (*auth.User, error) { return r.byEmail(email) })
}

func (r *Users) read(op string, get func() (*auth.User, error)) (*auth.User, error) {
	user, err := get()
	if err != nil {
		return nil, err
	}
	r.db.afterRead(op)
	return user, nil
}

func (r *Users) byID(id ulid.ULID) (*auth.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return r.db.hydrate(row), nil
}

func (r *Users) byEmail(email string) (*auth.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, row := range r.db.users {
		if row.user.Email == email {
			return r.db.hydrate(row), nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
}

// List implements auth.UserRepository.
func (r *Users) List(_ context.Context) ([]*auth.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	users := make([]*auth.User, 0, len(r.db.users))
	for _, row := range r.db.users {
		users = append(users, r.db.hydrate(row))
	}
	slices.SortFunc(users, func(a, b *auth.User) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return users, nil
}

// Update implements auth.UserRepository.
func (r *Users) Update(_ context.Context, user *auth.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("users.Update"); err != nil {
		return err
	}
	row, ok := r.db.users[user.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	if !r.db.roleNameExists(user.RoleName) {
		return oops.Code("USER_UPDATE_FAILED").Errorf("role %q does not exist", user.RoleName)
	}
	if r.db.emailTaken(user.Email, user.ID) {
		return oops.Code("USER_EMAIL_EXISTS").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
	}
	row.user = *user
	row.user.Profile = nil
	r.db.users[user.ID] = row
	return nil
}

// Delete implements auth.UserRepository.
func (r *Users) Delete(_ context.Context, id ulid.ULID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.db.users, id)
	delete(r.db.profiles, row.profileID)
	return nil
}

// Profiles implements auth.ProfileRepository.
type Profiles struct {
	db *DB
}

// Create implements auth.ProfileRepository.
func (r *Profiles) Create(_ context.Context, profile *auth.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("profiles.Create"); err != nil {
		return err
	}
	r.db.profiles[profile.ID] = *profile
	return nil
}

// Update implements auth.ProfileRepository.
func (r *Profiles) Update(_ context.Context, profile *auth.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("profiles.Update"); err != nil {
		return err
	}
	if _, ok := r.db.profiles[profile.ID]; !ok {
		return oops.Code("PROFILE_NOT_FOUND").With("id", profile.ID.String()).Wrap(auth.ErrNotFound)
	}
	r.db.profiles[profile.ID] = *profile
	return nil
}

// Roles implements auth.RoleRepository.
type Roles struct {
	db *DB
}

// Create implements auth.RoleRepository.
func (r *Roles) Create(_ context.Context, role *auth.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("roles.Create"); err != nil {
		return err
	}
	if r.db.roleNameExists(role.Name) {
		return oops.Code("ROLE_NAME_EXISTS").With("name", role.Name).Errorf("role name already exists")
	}
	r.db.roles[role.ID] = *role
	return nil
}

// GetByID implements auth.RoleRepository.
func (r *Roles) GetByID(_ context.Context, id ulid.ULID) (*auth.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	role, ok := r.db.roles[id]
	if !ok {
		return nil, oops.Code("ROLE_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &role, nil
}

// GetByName implements auth.RoleRepository.
func (r *Roles) GetByName(_ context.Context, name string) (*auth.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fault("roles.GetByName"); err != nil {
		return nil, err
	}
	for _, role := range r.db.roles {
		if role.Name == name {
			return &role, nil
		}
	}
	return nil, oops.Code("ROLE_NOT_FOUND").With("name", name).Wrap(auth.ErrNotFound)
}

// List implements auth.RoleRepository.
func (r *Roles) List(_ context.Context) ([]*auth.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	roles := make([]*auth.Role, 0, len(r.db.roles))
	for _, role := range r.db.roles {
		roles = append(roles, &role)
	}
	slices.SortFunc(roles, func(a, b *auth.Role) int { return strings.Compare(a.Name, b.Name) })
	return roles, nil
}

// Update implements auth.RoleRepository. A rename cascades to users.
func (r *Roles) Update(_ context.Context, role *auth.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	old, ok := r.db.roles[role.ID]
	if !ok {
		return oops.Code("ROLE_NOT_FOUND").With("id", role.ID.String()).Wrap(auth.ErrNotFound)
	}
	if old.Name != role.Name && r.db.roleNameExists(role.Name) {
		return oops.Code("ROLE_NAME_EXISTS").With("name", role.Name).Errorf("role name already exists")
	}
	r.db.roles[role.ID] = *role
	for id, row := range r.db.users {
		if row.user.RoleName == old.Name {
			row.user.RoleName = role.Name
			r.db.users[id] = row
		}
	}
	return nil
}

// Delete implements auth.RoleRepository. A role still referenced by a user cannot be deleted.
func (r *Roles) Delete(_ context.Context, id ulid.ULID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	role, ok := r.db.roles[id]
	if !ok {
		return oops.Code("ROLE_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	for _, row := range r.db.users {
		if row.user.RoleName == role.Name {
			return oops.Code("ROLE_IN_USE").With("name", role.Name).Errorf("role is assigned to users")
		}
	}
	delete(r.db.roles, id)
	return nil
}
