// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/guideli/guideli/internal/auth"
	authpg "github.com/guideli/guideli/internal/auth/postgres"
	"github.com/guideli/guideli/internal/store"
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth PostgreSQL Integration Suite")
}

// testEnv holds the database and the services wired on top of it.
type testEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	container testcontainers.Container

	Store    *auth.CredentialStore
	Identity *auth.IdentityService
	Roles    *auth.RoleService
	Seeder   *auth.Seeder
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

var _ = BeforeEach(func() {
	_, err := env.pool.Exec(env.ctx, `TRUNCATE users, profiles, roles CASCADE`)
	Expect(err).NotTo(HaveOccurred())
	_, err = env.Seeder.SeedRoles(env.ctx, auth.DefaultRoles())
	Expect(err).NotTo(HaveOccurred())
})

func setupTestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("guideli_test"),
		postgres.WithUsername("guideli"),
		postgres.WithPassword("guideli"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	e := &testEnv{ctx: ctx, container: container}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		e.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	upErr := migrator.Up()
	_ = migrator.Close()
	if upErr != nil {
		e.cleanup()
		return nil, upErr
	}

	e.pool, err = store.Open(ctx, connStr)
	if err != nil {
		e.cleanup()
		return nil, err
	}

	if e.Store, err = authpg.NewCredentialStore(e.pool, auth.NewArgon2idHasher()); err != nil {
		e.cleanup()
		return nil, err
	}
	if e.Identity, err = auth.NewIdentityService(e.Store); err != nil {
		e.cleanup()
		return nil, err
	}
	if e.Roles, err = auth.NewRoleService(e.Store); err != nil {
		e.cleanup()
		return nil, err
	}
	if e.Seeder, err = auth.NewSeeder(e.Roles, e.Identity); err != nil {
		e.cleanup()
		return nil, err
	}
	return e, nil
}

func (e *testEnv) cleanup() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}

func (e *testEnv) count(table string) int {
	var n int
	err := e.pool.QueryRow(e.ctx, `SELECT count(*) FROM `+table).Scan(&n)
	Expect(err).NotTo(HaveOccurred())
	return n
}
