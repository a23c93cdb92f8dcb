// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

// emailConstraint is the unique constraint on users.email.
const emailConstraint = "users_email_key"

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.is_email_verified,
	       u.email_verification_token, u.email_verification_token_expiry,
	       u.password_reset_token, u.password_reset_token_expiry,
	       u.role_name, u.created_at, u.updated_at,
	       p.id, p.first_name, p.last_name, p.phone_number,
	       p.profile_picture, p.bio, p.created_at, p.updated_at
	FROM users u
	JOIN profiles p ON p.id = u.profile_id`

// UserRepository implements auth.UserRepository using PostgreSQL.
// Users are always read together with their profile.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user. The profile must already exist.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	if user.Profile == nil {
		return oops.Code("USER_CREATE_FAILED").
			With("email", user.Email).
			Errorf("user has no profile")
	}

	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, is_email_verified,
			email_verification_token, email_verification_token_expiry,
			password_reset_token, password_reset_token_expiry,
			role_name, profile_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.EmailVerificationTokenExpiry,
		user.PasswordResetToken,
		user.PasswordResetTokenExpiry,
		user.RoleName,
		user.Profile.ID.String(),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, emailConstraint) {
			return oops.Code("USER_EMAIL_EXISTS").
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getByID(ctx, id, selectUser+` WHERE u.id = $1`)
}

// GetByIDForUpdate retrieves a user by ID and locks the user row until the
// surrounding transaction ends.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getByID(ctx, id, selectUser+` WHERE u.id = $1 FOR UPDATE OF u`)
}

func (r *UserRepository) getByID(ctx context.Context, id ulid.ULID, query string) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, query, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getByEmail(ctx, email, selectUser+` WHERE u.email = $1`)
}

// GetByEmailForUpdate retrieves a user by exact email and locks the user row
// until the surrounding transaction ends.
func (r *UserRepository) GetByEmailForUpdate(ctx context.Context, email string) (*auth.User, error) {
	return r.getByEmail(ctx, email, selectUser+` WHERE u.email = $1 FOR UPDATE OF u`)
}

func (r *UserRepository) getByEmail(ctx context.Context, email, query string) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, query, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, selectUser+` ORDER BY u.created_at, u.id`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user row").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// Update persists every mutable user field.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			is_email_verified = $4,
			email_verification_token = $5,
			email_verification_token_expiry = $6,
			password_reset_token = $7,
			password_reset_token_expiry = $8,
			role_name = $9,
			updated_at = $10
		WHERE id = $1
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.EmailVerificationTokenExpiry,
		user.PasswordResetToken,
		user.PasswordResetTokenExpiry,
		user.RoleName,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, emailConstraint) {
			return oops.Code("USER_EMAIL_EXISTS").
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user by deleting its profile; the foreign key cascades to the user row.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM profiles
		WHERE id = (SELECT profile_id FROM users WHERE id = $1)
	`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a selectUser row. pgx.ErrNoRows is returned unchanged.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr, profileIDStr string
		user                auth.User
		profile             auth.Profile
		verifyToken         *string
		verifyExpiry        *time.Time
		resetToken          *string
		resetExpiry         *time.Time
	)

	err := row.Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&verifyToken,
		&verifyExpiry,
		&resetToken,
		&resetExpiry,
		&user.RoleName,
		&user.CreatedAt,
		&user.UpdatedAt,
		&profileIDStr,
		&profile.FirstName,
		&profile.LastName,
		&profile.PhoneNumber,
		&profile.ProfilePicture,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user").Wrap(err)
	}

	if user.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if profile.ID, err = ulid.Parse(profileIDStr); err != nil {
		return nil, oops.Code("PROFILE_INVALID_ID").With("id", profileIDStr).Wrap(err)
	}

	user.EmailVerificationToken = verifyToken
	user.EmailVerificationTokenExpiry = verifyExpiry
	user.PasswordResetToken = resetToken
	user.PasswordResetTokenExpiry = resetExpiry
	user.Profile = &profile
	return &user, nil
}

// isUniqueViolation reports whether err is a unique violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

// isForeignKeyViolation reports whether err is a foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

var _ auth.UserRepository = (*UserRepository)(nil)
