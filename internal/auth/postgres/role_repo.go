// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

// roleNameConstraint is the unique constraint on roles.name.
const roleNameConstraint = "roles_name_key"

const selectRole = `SELECT id, name, description, created_at, updated_at FROM roles`

// roleRow is the scan target for a roles row.
type roleRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r roleRow) toRole() (*auth.Role, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return nil, oops.Code("ROLE_INVALID_ID").With("id", r.ID).Wrap(err)
	}
	return &auth.Role{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// RoleRepository implements auth.RoleRepository using PostgreSQL.
type RoleRepository struct {
	pool poolIface
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool poolIface) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// Create stores a new role.
func (r *RoleRepository) Create(ctx context.Context, role *auth.Role) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO roles (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, role.ID.String(), role.Name, role.Description, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, roleNameConstraint) {
			return oops.Code("ROLE_NAME_EXISTS").With("name", role.Name).Wrap(err)
		}
		return oops.Code("ROLE_CREATE_FAILED").
			With("operation", "insert role").
			With("name", role.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a role by ID.
func (r *RoleRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Role, error) {
	return r.getOne(ctx, selectRole+` WHERE id = $1`, "id", id.String())
}

// GetByName retrieves a role by name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*auth.Role, error) {
	return r.getOne(ctx, selectRole+` WHERE name = $1`, "name", name)
}

func (r *RoleRepository) getOne(ctx context.Context, query, key, value string) (*auth.Role, error) {
	var row roleRow
	if err := pgxscan.Get(ctx, conn(ctx, r.pool), &row, query, value); err != nil {
		if pgxscan.NotFound(err) {
			return nil, oops.Code("ROLE_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("ROLE_GET_FAILED").
			With("operation", "get role by "+key).
			With(key, value).
			Wrap(err)
	}
	return row.toRole()
}

// List returns all roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]*auth.Role, error) {
	var rows []roleRow
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &rows, selectRole+` ORDER BY name`); err != nil {
		return nil, oops.Code("ROLE_LIST_FAILED").With("operation", "list roles").Wrap(err)
	}

	roles := make([]*auth.Role, 0, len(rows))
	for _, row := range rows {
		role, err := row.toRole()
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Update persists the name and description of a role. Renames cascade to
// users.role_name through the foreign key.
func (r *RoleRepository) Update(ctx context.Context, role *auth.Role) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
	`, role.ID.String(), role.Name, role.Description, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, roleNameConstraint) {
			return oops.Code("ROLE_NAME_EXISTS").With("name", role.Name).Wrap(err)
		}
		return oops.Code("ROLE_UPDATE_FAILED").
			With("operation", "update role").
			With("id", role.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ROLE_NOT_FOUND").With("id", role.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a role. A role still assigned to users cannot be deleted.
func (r *RoleRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM roles WHERE id = $1`, id.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("ROLE_IN_USE").With("id", id.String()).Wrap(err)
		}
		return oops.Code("ROLE_DELETE_FAILED").
			With("operation", "delete role").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ROLE_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.RoleRepository = (*RoleRepository)(nil)
