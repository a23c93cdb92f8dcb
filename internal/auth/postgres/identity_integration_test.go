// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

//go:build integration

package postgres_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/guideli/guideli/internal/auth"
)

func register(email string) *auth.User {
	user, err := env.Identity.Register(env.ctx, auth.RegisterParams{
		Email:     email,
		Password:  "Abc12345",
		FirstName: "A",
		LastName:  "B",
	})
	Expect(err).NotTo(HaveOccurred())
	return user
}

var _ = Describe("Registration", func() {
	It("persists profile and user together", func() {
		user := register("a@x.com")

		found, err := env.Identity.FindByEmail(env.ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(user.ID))
		Expect(found.RoleName).To(Equal(auth.RoleUser))
		Expect(found.Profile.FirstName).To(Equal("A"))
		Expect(found.IsEmailVerified).To(BeFalse())
		Expect(found.EmailVerificationToken).NotTo(BeNil())
		Expect(*found.EmailVerificationToken).To(HaveLen(auth.EmailVerificationTokenLength))
		Expect(found.PasswordHash).NotTo(Equal("Abc12345"))
	})

	It("rejects a duplicate email and leaves the first account intact", func() {
		first := register("a@x.com")

		_, err := env.Identity.Register(env.ctx, auth.RegisterParams{Email: "a@x.com", Password: "other-pass"})
		Expect(errors.Is(err, auth.ErrDuplicateEmail)).To(BeTrue())

		Expect(env.count("users")).To(Equal(1))
		Expect(env.count("profiles")).To(Equal(1))

		_, err = env.Identity.AuthenticateLocal(env.ctx, "a@x.com", "Abc12345")
		Expect(err).NotTo(HaveOccurred())
		found, err := env.Identity.Get(env.ctx, first.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Email).To(Equal("a@x.com"))
	})

	It("rolls back the profile when the role does not resolve", func() {
		_, err := env.Identity.Register(env.ctx, auth.RegisterParams{
			Email:    "a@x.com",
			Password: "Abc12345",
			Role:     "ghost",
		})
		Expect(errors.Is(err, auth.ErrRoleNotFound)).To(BeTrue())
		Expect(env.count("users")).To(Equal(0))
		Expect(env.count("profiles")).To(Equal(0))
	})
})

var _ = Describe("Recovery tokens", func() {
	It("confirms an email exactly once", func() {
		user := register("a@x.com")
		token := *user.EmailVerificationToken

		confirmed, err := env.Identity.ConfirmEmail(env.ctx, "a@x.com", token)
		Expect(err).NotTo(HaveOccurred())
		Expect(confirmed.IsEmailVerified).To(BeTrue())

		stored, err := env.Identity.Get(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.IsEmailVerified).To(BeTrue())
		Expect(stored.EmailVerificationToken).To(BeNil())
		Expect(stored.EmailVerificationTokenExpiry).To(BeNil())

		_, err = env.Identity.ConfirmEmail(env.ctx, "a@x.com", token)
		Expect(err).To(HaveOccurred())
	})

	It("lets only one concurrent presentation of a reset token succeed", func() {
		register("a@x.com")
		token, err := env.Identity.RequestPasswordReset(env.ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				if _, err := env.Identity.CompletePasswordReset(env.ctx, "a@x.com", token, "NewPass123"); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		_, err = env.Identity.AuthenticateLocal(env.ctx, "a@x.com", "NewPass123")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Identity.AuthenticateLocal(env.ctx, "a@x.com", "Abc12345")
		Expect(errors.Is(err, auth.ErrUnauthorized)).To(BeTrue())
	})
})

var _ = Describe("Users and roles", func() {
	It("updates profile fields and role", func() {
		user := register("a@x.com")
		admin := auth.RoleAdmin
		bio := "hello"

		updated, err := env.Identity.Update(env.ctx, user.ID, auth.UserPatch{RoleName: &admin, Bio: &bio})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.RoleName).To(Equal(auth.RoleAdmin))

		stored, err := env.Identity.Get(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.RoleName).To(Equal(auth.RoleAdmin))
		Expect(stored.Profile.Bio).To(Equal("hello"))
	})

	It("cascades role renames to users", func() {
		user := register("a@x.com")
		role, err := env.Roles.FindByName(env.ctx, auth.RoleUser)
		Expect(err).NotTo(HaveOccurred())

		renamed := "member"
		_, err = env.Roles.Update(env.ctx, role.ID, auth.RolePatch{Name: &renamed})
		Expect(err).NotTo(HaveOccurred())

		stored, err := env.Identity.Get(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.RoleName).To(Equal("member"))
	})

	It("refuses to delete a role that is still assigned", func() {
		register("a@x.com")
		role, err := env.Roles.FindByName(env.ctx, auth.RoleUser)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Roles.Remove(env.ctx, role.ID)).To(HaveOccurred())
		Expect(env.count("roles")).To(Equal(3))
	})

	It("deletes the profile together with the user", func() {
		user := register("a@x.com")

		Expect(env.Identity.Remove(env.ctx, user.ID)).To(Succeed())
		Expect(env.count("users")).To(Equal(0))
		Expect(env.count("profiles")).To(Equal(0))

		err := env.Identity.Remove(env.ctx, user.ID)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("Seeding", func() {
	It("is idempotent", func() {
		data := auth.SeedData{
			Roles: auth.DefaultRoles(),
			SuperAdmin: auth.SuperAdminSeed{
				Email:    "root@x.com",
				Password: "RootPass123",
			},
		}

		_, err := env.Seeder.Run(env.ctx, data)
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Seeder.Run(env.ctx, data)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.count("roles")).To(Equal(3))
		Expect(env.count("users")).To(Equal(1))

		root, err := env.Identity.FindByEmail(env.ctx, "root@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(root.RoleName).To(Equal(auth.RoleSuperAdmin))
		Expect(root.IsEmailVerified).To(BeTrue())
	})
})
