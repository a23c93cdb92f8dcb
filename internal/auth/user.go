// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// User is an identity record.
type User struct {
	ID    ulid.ULID `json:"id"`
	Email string    `json:"email"`

	// Password holds a plaintext password waiting to be hashed by the CredentialStore.
	// It is cleared on write and never persisted.
	Password     string `json:"-"`
	PasswordHash string `json:"-"`

	IsEmailVerified              bool       `json:"isEmailVerified"`
	EmailVerificationToken       *string    `json:"-"`
	EmailVerificationTokenExpiry *time.Time `json:"-"`
	PasswordResetToken           *string    `json:"-"`
	PasswordResetTokenExpiry     *time.Time `json:"-"`

	RoleName  string    `json:"roleName"`
	Profile   *Profile  `json:"profile,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile holds personal data owned by exactly one User.
type Profile struct {
	ID             ulid.ULID `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserPatch lists the fields an update may change. Nil fields are left untouched.
type UserPatch struct {
	Email           *string `json:"email,omitempty"`
	Password        *string `json:"password,omitempty"`
	IsEmailVerified *bool   `json:"isEmailVerified,omitempty"`
	RoleName        *string `json:"roleName,omitempty"`
	FirstName       *string `json:"firstName,omitempty"`
	LastName        *string `json:"lastName,omitempty"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	ProfilePicture  *string `json:"profilePicture,omitempty"`
	Bio             *string `json:"bio,omitempty"`
}

// touchesProfile reports whether the patch changes any profile field.
func (p UserPatch) touchesProfile() bool {
	return p.FirstName != nil || p.LastName != nil || p.PhoneNumber != nil ||
		p.ProfilePicture != nil || p.Bio != nil
}

// apply merges the patch onto the user and its profile.
func (p UserPatch) apply(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.IsEmailVerified != nil {
		u.IsEmailVerified = *p.IsEmailVerified
	}
	if p.RoleName != nil {
		u.RoleName = *p.RoleName
	}
	if u.Profile == nil {
		return
	}
	if p.FirstName != nil {
		u.Profile.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.Profile.LastName = *p.LastName
	}
	if p.PhoneNumber != nil {
		u.Profile.PhoneNumber = *p.PhoneNumber
	}
	if p.ProfilePicture != nil {
		u.Profile.ProfilePicture = *p.ProfilePicture
	}
	if p.Bio != nil {
		u.Profile.Bio = *p.Bio
	}
}

// UserRepository manages user persistence. Returned users carry their Profile.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByIDForUpdate is GetByID that locks the row until the surrounding
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByEmailForUpdate is GetByEmail that locks the row until the surrounding
	// transaction ends.
	GetByEmailForUpdate(ctx context.Context, email string) (*User, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*User, error)

	// Update persists every mutable field of an existing user.
	Update(ctx context.Context, user *User) error

	// Delete removes a user and its profile.
	Delete(ctx context.Context, id ulid.ULID) error
}

// ProfileRepository manages profile persistence.
type ProfileRepository interface {
	// Create stores a new profile.
	Create(ctx context.Context, profile *Profile) error

	// Update persists every mutable field of an existing profile.
	Update(ctx context.Context, profile *Profile) error
}
