// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

//go:build integration

package cli_test

import (
	"context"
	"os/exec"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// runGuideli runs the compiled binary against the test database.
func runGuideli(ctx context.Context, extraEnv []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(cmd.Environ(),
		"GUIDELI_DATABASE_URL="+connStr,
		"XDG_CONFIG_HOME="+configDir,
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

var superAdminEnv = []string{
	"GUIDELI_SEED__SUPER_ADMIN__EMAIL=root@example.com",
	"GUIDELI_SEED__SUPER_ADMIN__PASSWORD=Sup3rSecret",
	"GUIDELI_SEED__SUPER_ADMIN__FIRST_NAME=Root",
	"GUIDELI_SEED__SUPER_ADMIN__LAST_NAME=Admin",
}

var _ = Describe("Seed Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx)
	})

	It("creates the default roles and the super admin", func() {
		output, err := runGuideli(ctx, superAdminEnv, "seed")
		Expect(err).NotTo(HaveOccurred(), "seed command failed: %s", output)
		Expect(output).To(ContainSubstring("Roles created: 3"))
		Expect(output).To(ContainSubstring("Super admin created: root@example.com"))

		var roleName string
		var verified bool
		err = pool.QueryRow(ctx,
			"SELECT role_name, is_email_verified FROM users WHERE email = $1",
			"root@example.com",
		).Scan(&roleName, &verified)
		Expect(err).NotTo(HaveOccurred())
		Expect(roleName).To(Equal("super_admin"))
		Expect(verified).To(BeTrue())
	})

	It("is idempotent (running twice succeeds without duplicates)", func() {
		output1, err := runGuideli(ctx, superAdminEnv, "seed")
		Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", output1)

		output2, err := runGuideli(ctx, superAdminEnv, "seed")
		Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", output2)
		Expect(output2).To(ContainSubstring("Roles created: 0"))
		Expect(output2).To(ContainSubstring("Super admin already exists"))

		var roles, users int
		Expect(pool.QueryRow(ctx, "SELECT COUNT(*) FROM roles").Scan(&roles)).To(Succeed())
		Expect(pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&users)).To(Succeed())
		Expect(roles).To(Equal(3))
		Expect(users).To(Equal(1))
	})

	It("skips the super admin when none is configured", func() {
		output, err := runGuideli(ctx, nil, "seed")
		Expect(err).NotTo(HaveOccurred(), "seed command failed: %s", output)
		Expect(output).To(ContainSubstring("No super admin configured"))
	})
})

var _ = Describe("Migrate Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx)
	})

	It("applies migrations and reports the version", func() {
		output, err := runGuideli(ctx, nil, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)
		Expect(output).To(ContainSubstring("Migrations completed successfully"))

		output, err = runGuideli(ctx, nil, "migrate", "version")
		Expect(err).NotTo(HaveOccurred(), "migrate version failed: %s", output)
		Expect(output).To(ContainSubstring("applied  000001_initial"))
		Expect(output).NotTo(ContainSubstring("(dirty)"))
	})
})
