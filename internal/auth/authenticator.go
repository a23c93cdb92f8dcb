// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenSigner issues and verifies bearer tokens. JWTSigner implements it.
type TokenSigner interface {
	Sign(user *User) (string, error)
	Verify(token string) (*Claims, error)
}

// Session is the result of a successful login or registration.
type Session struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// FederatedIdentity is what an external provider asserts about a user.
type FederatedIdentity struct {
	Email      string
	FirstName  string
	LastName   string
	ProviderID string
}

// Authenticator issues bearer sessions and resolves bearer tokens to users.
type Authenticator struct {
	identity *IdentityService
	signer   TokenSigner
	logger   *slog.Logger
	recorder EventRecorder
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(identity *IdentityService, signer TokenSigner, opts ...Option) (*Authenticator, error) {
	if identity == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("identity service is required")
	}
	if signer == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("token signer is required")
	}
	o := buildOptions(opts)
	return &Authenticator{
		identity: identity,
		signer:   signer,
		logger:   o.logger,
		recorder: o.recorder,
	}, nil
}

// IssueSession signs a bearer token for an already authenticated user.
func (a *Authenticator) IssueSession(user *User) (*Session, error) {
	token, err := a.signer.Sign(user)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, User: user}, nil
}

// Login verifies an email/password pair and issues a session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*Session, error) {
	session, err := a.login(ctx, email, password)
	a.recorder.RecordAuthEvent("login", result(err))
	return session, err
}

func (a *Authenticator) login(ctx context.Context, email, password string) (*Session, error) {
	user, err := a.identity.AuthenticateLocal(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.IssueSession(user)
}

// Register creates an account and signs the new user in.
func (a *Authenticator) Register(ctx context.Context, p RegisterParams) (*Session, error) {
	user, err := a.identity.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	return a.IssueSession(user)
}

// FederatedLogin links a provider identity to a local account by email. An
// unknown email registers a verified account with the provider ID as password
// material. A known email signs in without a password check.
func (a *Authenticator) FederatedLogin(ctx context.Context, fi FederatedIdentity) (*Session, error) {
	session, err := a.federatedLogin(ctx, fi)
	a.recorder.RecordAuthEvent("federated_login", result(err))
	return session, err
}

func (a *Authenticator) federatedLogin(ctx context.Context, fi FederatedIdentity) (*Session, error) {
	user, err := a.identity.FindByEmail(ctx, fi.Email)
	if err == nil {
		return a.IssueSession(user)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("FEDERATED_LOGIN_FAILED").With("email", fi.Email).Wrap(err)
	}

	user, err = a.identity.Register(ctx, RegisterParams{
		Email:         fi.Email,
		Password:      fi.ProviderID,
		FirstName:     fi.FirstName,
		LastName:      fi.LastName,
		EmailVerified: true,
	})
	if errors.Is(err, ErrDuplicateEmail) {
		// Lost a race with a concurrent first login for the same email.
		user, err = a.identity.FindByEmail(ctx, fi.Email)
	}
	if err != nil {
		return nil, oops.Code("FEDERATED_LOGIN_FAILED").With("email", fi.Email).Wrap(err)
	}
	a.logger.InfoContext(ctx, "federated account created", "user_id", user.ID.String())
	return a.IssueSession(user)
}

// Authenticate verifies a bearer token and resolves its subject to the current
// user record. A token whose user no longer exists is rejected.
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (*User, error) {
	user, err := a.authenticate(ctx, bearer)
	a.recorder.RecordAuthEvent("bearer", result(err))
	return user, err
}

func (a *Authenticator) authenticate(ctx context.Context, bearer string) (*User, error) {
	claims, err := a.signer.Verify(bearer)
	if err != nil {
		return nil, err
	}
	id, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").With("reason", "malformed subject").Wrap(ErrUnauthorized)
	}
	user, err := a.identity.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_SUBJECT_UNKNOWN").With("user_id", id.String()).Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_BEARER_FAILED").With("user_id", id.String()).Wrap(err)
	}
	return user, nil
}
