// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/internal/auth/postgres"
	"github.com/guideli/guideli/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default roles and the super-admin account",
		Long: `Applies pending migrations, then creates the configured roles and the
super-admin account. Existing rows are left untouched, so the command can be
run any number of times.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	addDatabaseFlag(cmd)
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	// cmd.Context() carries SIGINT/SIGTERM cancellation.
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	logger := slog.Default()

	cmd.Println("Connecting to database...")
	pool, err := store.Open(ctx, cfg.DatabaseURL, store.WithLogger(logger))
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	if err := applyMigrations(defaultMigratorFactory, cfg.DatabaseURL); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	credentials, err := postgres.NewCredentialStore(pool, auth.NewArgon2idHasher())
	if err != nil {
		return oops.With("operation", "create credential store").Wrap(err)
	}
	svc, err := buildServices(credentials, cfg, logger, nil, nil)
	if err != nil {
		return err
	}

	res, err := svc.seeder.Run(ctx, cfg.Seed)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "seed").Wrap(err)
	}

	cmd.Printf("Roles created: %d\n", res.RolesCreated)
	switch {
	case res.SuperAdminCreated:
		cmd.Printf("Super admin created: %s\n", cfg.Seed.SuperAdmin.Email)
	case cfg.Seed.SuperAdmin.Email == "":
		cmd.Println("No super admin configured, skipping")
	default:
		cmd.Println("Super admin already exists, skipping")
	}
	return nil
}
