// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guideli/guideli/pkg/errutil"
)

// dummyPasswordHash is verified when the account does not exist so that the
// response time does not reveal whether an email is registered.
//
//nolint:gosec // G101: fake hash for timing equalization, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterParams describes a new account.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	// Role defaults to RoleUser when empty.
	Role string
	// EmailVerified skips the verification token, e.g. for federated or seeded accounts.
	EmailVerified bool
}

// IdentityService orchestrates account registration and credential recovery.
type IdentityService struct {
	store     *CredentialStore
	tokens    *TokenIssuer
	notifier  Notifier
	clientURL string
	logger    *slog.Logger
	recorder  EventRecorder
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(store *CredentialStore, opts ...Option) (*IdentityService, error) {
	if store == nil {
		return nil, oops.Code("IDENTITY_SERVICE_INVALID").Errorf("credential store is required")
	}
	o := buildOptions(opts)
	return &IdentityService{
		store:     store,
		tokens:    NewTokenIssuer(o.now),
		notifier:  o.notifier,
		clientURL: strings.TrimRight(o.clientURL, "/"),
		logger:    o.logger,
		recorder:  o.recorder,
	}, nil
}

// Register creates the profile, resolves the role, creates the user and issues an
// email verification token, all in one transaction. The returned user carries the
// active token. A taken email yields ErrDuplicateEmail; an unknown role yields
// ErrRoleNotFound.
func (s *IdentityService) Register(ctx context.Context, p RegisterParams) (*User, error) {
	roleName := p.Role
	if roleName == "" {
		roleName = RoleUser
	}

	var (
		user  *User
		token string
	)
	err := s.store.InTransaction(ctx, func(ctx context.Context) error {
		profile := &Profile{ID: ulid.Make(), FirstName: p.FirstName, LastName: p.LastName}
		if err := s.store.CreateProfile(ctx, profile); err != nil {
			return oops.With("operation", "create profile").Wrap(err)
		}

		role, err := s.store.FindRoleByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("REGISTER_ROLE_NOT_FOUND").With("role", roleName).Wrap(ErrRoleNotFound)
			}
			return oops.With("operation", "resolve role").With("role", roleName).Wrap(err)
		}

		u := &User{
			ID:              ulid.Make(),
			Email:           p.Email,
			Password:        p.Password,
			IsEmailVerified: p.EmailVerified,
			RoleName:        role.Name,
			Profile:         profile,
		}
		if !u.IsEmailVerified {
			token, err = s.tokens.Issue(u, PurposeEmailVerification)
			if err != nil {
				return oops.With("operation", "issue verification token").Wrap(err)
			}
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return oops.With("operation", "create user").Wrap(err)
		}
		user = u
		return nil
	})
	s.recorder.RecordAuthEvent("register", result(err))
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code("AUTH_DUPLICATE_EMAIL").With("email", p.Email).Wrap(ErrDuplicateEmail)
		}
		errutil.LogError(s.logger, "registration failed", err)
		return nil, oops.Code("REGISTER_FAILED").With("email", p.Email).Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "role", user.RoleName)
	if token != "" {
		s.notify(ctx, Notification{Recipient: user.Email, Purpose: PurposeEmailVerification, Token: token})
	}
	return user, nil
}

// AuthenticateLocal checks an email/password pair. Unknown emails and wrong
// passwords both yield ErrUnauthorized.
func (s *IdentityService) AuthenticateLocal(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.store.FindUserByEmail(ctx, email)

	var targetHash string
	var exists bool
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		exists = true
	}

	hasher := s.store.Hasher()
	valid, verifyErr := hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !exists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrUnauthorized)
	}

	if hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// upgradeHash rehashes a verified password with the current hasher. The row is
// re-read under lock and only rewritten while it still holds the verified hash,
// so a password change that landed after the login read is kept.
func (s *IdentityService) upgradeHash(ctx context.Context, verified *User, password string) {
	var upgraded string
	err := s.store.InTransaction(ctx, func(ctx context.Context) error {
		u, err := s.store.FindUserByIDForUpdate(ctx, verified.ID)
		if err != nil {
			return oops.With("operation", "lock user").Wrap(err)
		}
		if u.PasswordHash != verified.PasswordHash {
			return nil
		}
		u.Password = password
		if err := s.store.SaveUser(ctx, u); err != nil {
			return oops.With("operation", "save user").Wrap(err)
		}
		upgraded = u.PasswordHash
		return nil
	})
	if err != nil {
		errutil.LogError(s.logger, "password hash upgrade failed",
			oops.With("user_id", verified.ID.String()).Wrap(err))
		return
	}
	if upgraded != "" {
		verified.PasswordHash = upgraded
	}
}

// ConfirmEmail validates an email verification token and marks the email verified.
func (s *IdentityService) ConfirmEmail(ctx context.Context, email, token string) (*User, error) {
	user, err := s.consumeToken(ctx, email, PurposeEmailVerification, token, func(u *User) {
		u.IsEmailVerified = true
	})
	s.recorder.RecordAuthEvent("confirm_email", result(err))
	return user, err
}

// ResendEmailVerification issues a fresh verification token for a user.
func (s *IdentityService) ResendEmailVerification(ctx context.Context, id ulid.ULID) (string, error) {
	user, token, err := s.issueLocked(ctx, PurposeEmailVerification, func(ctx context.Context) (*User, error) {
		u, err := s.store.FindUserByIDForUpdate(ctx, id)
		if err != nil {
			return nil, oops.With("operation", "find user").With("id", id.String()).Wrap(err)
		}
		return u, nil
	})
	if err != nil {
		return "", oops.With("operation", "resend verification").Wrap(err)
	}
	s.notify(ctx, Notification{Recipient: user.Email, Purpose: PurposeEmailVerification, Token: token})
	return token, nil
}

// RequestPasswordReset issues a password reset token and hands the reset link to
// the notifier. Returns the token; an unknown email yields ErrNotFound.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	token, err := s.requestPasswordReset(ctx, email)
	s.recorder.RecordAuthEvent("password_reset_request", result(err))
	return token, err
}

func (s *IdentityService) requestPasswordReset(ctx context.Context, email string) (string, error) {
	user, token, err := s.issueLocked(ctx, PurposePasswordReset, func(ctx context.Context) (*User, error) {
		u, err := s.store.FindUserByEmailForUpdate(ctx, email)
		if err != nil {
			return nil, oops.With("operation", "find user by email").Wrap(err)
		}
		return u, nil
	})
	if err != nil {
		return "", oops.With("operation", "request password reset").Wrap(err)
	}
	s.notify(ctx, Notification{
		Recipient: user.Email,
		Purpose:   PurposePasswordReset,
		Token:     token,
		Link:      s.resetLink(user.Email, token),
	})
	return token, nil
}

// issueLocked loads a user with find, issues a token for purpose and saves the
// user in one transaction. find must lock the row so that a concurrent token
// consumption is not overwritten with the stale copy.
func (s *IdentityService) issueLocked(
	ctx context.Context,
	purpose TokenPurpose,
	find func(ctx context.Context) (*User, error),
) (*User, string, error) {
	var (
		user  *User
		token string
	)
	err := s.store.InTransaction(ctx, func(ctx context.Context) error {
		u, err := find(ctx)
		if err != nil {
			return err
		}
		token, err = s.tokens.Issue(u, purpose)
		if err != nil {
			return err
		}
		if err := s.store.SaveUser(ctx, u); err != nil {
			return oops.Code("TOKEN_ISSUE_FAILED").
				With("purpose", string(purpose)).
				With("user_id", u.ID.String()).
				Wrap(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CompletePasswordReset validates a reset token and replaces the password.
func (s *IdentityService) CompletePasswordReset(ctx context.Context, email, token, newPassword string) (*User, error) {
	if newPassword == "" {
		return nil, oops.Code("RESET_PASSWORD_EMPTY").Wrap(ErrEmptyPassword)
	}
	user, err := s.consumeToken(ctx, email, PurposePasswordReset, token, func(u *User) {
		u.Password = newPassword
	})
	s.recorder.RecordAuthEvent("password_reset", result(err))
	return user, err
}

// consumeToken validates and clears a token and applies its side effect in one
// transaction. The user row stays locked until commit, so a token can succeed once.
func (s *IdentityService) consumeToken(
	ctx context.Context,
	email string,
	purpose TokenPurpose,
	token string,
	apply func(*User),
) (*User, error) {
	var user *User
	err := s.store.InTransaction(ctx, func(ctx context.Context) error {
		u, err := s.store.FindUserByEmailForUpdate(ctx, email)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("TOKEN_INVALID").With("purpose", string(purpose)).Wrap(ErrInvalidToken)
			}
			return oops.With("operation", "find user by email").Wrap(err)
		}
		if err := s.tokens.Validate(u, purpose, token); err != nil {
			return err
		}
		s.tokens.Clear(u, purpose)
		apply(u)
		if err := s.store.SaveUser(ctx, u); err != nil {
			return oops.With("operation", "save user").With("user_id", u.ID.String()).Wrap(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a user by ID.
func (s *IdentityService) Get(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, oops.With("operation", "find user").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

// FindByEmail returns a user by email.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, oops.With("operation", "find user by email").Wrap(err)
	}
	return user, nil
}

// List returns all users.
func (s *IdentityService) List(ctx context.Context) ([]*User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	return users, nil
}

// Update merges the patch onto an existing user. A new password is re-hashed.
func (s *IdentityService) Update(ctx context.Context, id ulid.ULID, patch UserPatch) (*User, error) {
	var user *User
	err := s.store.InTransaction(ctx, func(ctx context.Context) error {
		u, err := s.store.FindUserByIDForUpdate(ctx, id)
		if err != nil {
			return oops.With("operation", "find user").With("id", id.String()).Wrap(err)
		}
		if patch.RoleName != nil {
			if _, err := s.store.FindRoleByName(ctx, *patch.RoleName); err != nil {
				return oops.Code("USER_ROLE_INVALID").With("role", *patch.RoleName).Wrap(err)
			}
		}
		patch.apply(u)
		if err := s.store.SaveUser(ctx, u); err != nil {
			return oops.With("operation", "save user").With("id", id.String()).Wrap(err)
		}
		if patch.touchesProfile() && u.Profile != nil {
			if err := s.store.SaveProfile(ctx, u.Profile); err != nil {
				return oops.With("operation", "save profile").With("id", id.String()).Wrap(err)
			}
		}
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code("AUTH_DUPLICATE_EMAIL").With("id", id.String()).Wrap(ErrDuplicateEmail)
		}
		return nil, err
	}
	return user, nil
}

// Remove deletes a user and its profile.
func (s *IdentityService) Remove(ctx context.Context, id ulid.ULID) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return oops.With("operation", "delete user").With("id", id.String()).Wrap(err)
	}
	return nil
}

// notify hands a notification to the notifier. Failures are logged only.
func (s *IdentityService) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		errutil.LogError(s.logger, "notification failed", oops.
			With("purpose", string(n.Purpose)).
			Wrap(err))
	}
}

// resetLink builds the client-side password reset URL.
func (s *IdentityService) resetLink(email, token string) string {
	if s.clientURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return s.clientURL + "/auth/reset-password?" + q.Encode()
}
