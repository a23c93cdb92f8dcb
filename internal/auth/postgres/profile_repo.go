// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

// ProfileRepository implements auth.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	pool poolIface
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool poolIface) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Create stores a new profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *auth.Profile) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO profiles (
			id, first_name, last_name, phone_number,
			profile_picture, bio, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		profile.ID.String(),
		profile.FirstName,
		profile.LastName,
		profile.PhoneNumber,
		profile.ProfilePicture,
		profile.Bio,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PROFILE_CREATE_FAILED").
			With("operation", "insert profile").
			With("id", profile.ID.String()).
			Wrap(err)
	}
	return nil
}

// Update persists every mutable profile field.
func (r *ProfileRepository) Update(ctx context.Context, profile *auth.Profile) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE profiles SET
			first_name = $2,
			last_name = $3,
			phone_number = $4,
			profile_picture = $5,
			bio = $6,
			updated_at = $7
		WHERE id = $1
	`,
		profile.ID.String(),
		profile.FirstName,
		profile.LastName,
		profile.PhoneNumber,
		profile.ProfilePicture,
		profile.Bio,
		profile.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "update profile").
			With("id", profile.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PROFILE_NOT_FOUND").
			With("id", profile.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.ProfileRepository = (*ProfileRepository)(nil)
