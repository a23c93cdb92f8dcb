// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/guideli/guideli/internal/store"
)

var _ = Describe("Identity schema", Ordered, func() {
	var (
		ctx       context.Context
		container testcontainers.Container
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()

		pg, err := postgres.Run(ctx,
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
		Expect(err).NotTo(HaveOccurred())
		container = pg

		connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Open(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	insertUser := func(token, expiry any) error {
		if _, err := pool.Exec(ctx, `INSERT INTO roles (id, name) VALUES ('r1', 'user')`); err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, `INSERT INTO profiles (id) VALUES ('p1')`); err != nil {
			return err
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, role_name, profile_id,
			                   email_verification_token, email_verification_token_expiry)
			VALUES ('u1', 'a@x.com', 'hash', 'user', 'p1', $1, $2)`, token, expiry)
		return err
	}

	AfterEach(func() {
		_, err := pool.Exec(ctx, `TRUNCATE users, profiles, roles CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("accepts a four digit verification token with an expiry", func() {
		Expect(insertUser("0421", time.Now().Add(15*time.Minute))).To(Succeed())
	})

	It("rejects a token without an expiry", func() {
		Expect(insertUser("0421", nil)).NotTo(Succeed())
	})

	It("rejects a token that is not four digits", func() {
		Expect(insertUser("12a4", time.Now())).NotTo(Succeed())
	})

	It("removes the user when its profile is deleted", func() {
		Expect(insertUser(nil, nil)).To(Succeed())
		_, err := pool.Exec(ctx, `DELETE FROM profiles WHERE id = 'p1'`)
		Expect(err).NotTo(HaveOccurred())

		var n int
		Expect(pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(0))
	})
})
