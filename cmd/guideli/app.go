// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/internal/config"
)

// services holds the identity services built over one credential store.
type services struct {
	identity      *auth.IdentityService
	roles         *auth.RoleService
	seeder        *auth.Seeder
	authenticator *auth.Authenticator
}

// buildServices wires the auth services. notifier and recorder may be nil.
func buildServices(
	store *auth.CredentialStore,
	cfg *config.Config,
	logger *slog.Logger,
	notifier auth.Notifier,
	recorder auth.EventRecorder,
) (*services, error) {
	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithClientURL(cfg.ClientURL),
	}
	if notifier != nil {
		opts = append(opts, auth.WithNotifier(notifier))
	}
	if recorder != nil {
		opts = append(opts, auth.WithEventRecorder(recorder))
	}

	identity, err := auth.NewIdentityService(store, opts...)
	if err != nil {
		return nil, err
	}
	roles, err := auth.NewRoleService(store, opts...)
	if err != nil {
		return nil, err
	}
	seeder, err := auth.NewSeeder(roles, identity, opts...)
	if err != nil {
		return nil, err
	}

	s := &services{identity: identity, roles: roles, seeder: seeder}
	if cfg.JWT.Secret == "" {
		// Commands that never issue tokens run without a signing key.
		return s, nil
	}
	signer, err := auth.NewJWTSigner([]byte(cfg.JWT.Secret), cfg.JWT.Expiry, cfg.JWT.Issuer, nil)
	if err != nil {
		return nil, oops.With("operation", "create token signer").Wrap(err)
	}
	s.authenticator, err = auth.NewAuthenticator(identity, signer, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}
