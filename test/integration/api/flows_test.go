// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

//go:build integration

package api_test

import (
	"encoding/json"
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/guideli/guideli/internal/auth"
)

var _ = Describe("Account lifecycle", func() {
	const email = "ada@example.com"

	register := func() auth.Session {
		status, out := call(http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":     email,
			"password":  "Abc12345",
			"firstName": "Ada",
			"lastName":  "Lovelace",
		}, "")
		Expect(status).To(Equal(http.StatusCreated), out.Message)
		return session(out)
	}

	It("registers, confirms the email and reads the profile back", func() {
		s := register()
		Expect(s.User.RoleName).To(Equal(auth.RoleUser))
		Expect(s.User.IsEmailVerified).To(BeFalse())

		token := env.outbox.latest(email, auth.PurposeEmailVerification)
		Expect(token).To(MatchRegexp(`^\d{4}$`))

		status, out := call(http.MethodPost, "/api/v1/auth/confirm-email",
			map[string]string{"email": email, "token": token}, "")
		Expect(status).To(Equal(http.StatusCreated), out.Message)

		status, out = call(http.MethodGet, "/api/v1/users/me", nil, s.AccessToken)
		Expect(status).To(Equal(http.StatusOK))
		var me auth.User
		Expect(json.Unmarshal(out.Data, &me)).To(Succeed())
		Expect(me.IsEmailVerified).To(BeTrue())
		Expect(me.Profile).NotTo(BeNil())
		Expect(me.Profile.FirstName).To(Equal("Ada"))
	})

	It("rejects a second registration with the same email", func() {
		register()

		status, out := call(http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":     email,
			"password":  "Abc12345",
			"firstName": "Other",
			"lastName":  "Person",
		}, "")
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(out.Success).To(BeFalse())
	})

	It("resets a forgotten password", func() {
		register()

		status, _ := call(http.MethodGet, "/api/v1/auth/change-password?email="+url.QueryEscape(email), nil, "")
		Expect(status).To(Equal(http.StatusOK))
		token := env.outbox.latest(email, auth.PurposePasswordReset)
		Expect(token).To(MatchRegexp(`^\d{6}$`))

		status, out := call(http.MethodPost, "/api/v1/auth/change-password", map[string]string{
			"email":    email,
			"token":    token,
			"password": "NewPassw0rd",
		}, "")
		Expect(status).To(Equal(http.StatusCreated), out.Message)

		status, _ = call(http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": email, "password": "Abc12345"}, "")
		Expect(status).To(Equal(http.StatusUnauthorized))

		status, out = call(http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": email, "password": "NewPassw0rd"}, "")
		Expect(status).To(Equal(http.StatusOK), out.Message)
		session(out)

		By("consuming the token, so it cannot be replayed")
		status, _ = call(http.MethodPost, "/api/v1/auth/change-password", map[string]string{
			"email":    email,
			"token":    token,
			"password": "An0therPass",
		}, "")
		Expect(status).To(Equal(http.StatusUnauthorized))
	})
})

var _ = Describe("Administration", func() {
	login := func(email, password string) string {
		status, out := call(http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": email, "password": password}, "")
		Expect(status).To(Equal(http.StatusOK), out.Message)
		return session(out).AccessToken
	}

	It("lets the seeded super admin manage roles and users", func() {
		root := login(superAdminEmail, superAdminPassword)

		status, out := call(http.MethodPost, "/api/v1/roles",
			map[string]string{"name": "editor", "description": "Content editor"}, root)
		Expect(status).To(Equal(http.StatusCreated), out.Message)
		var role auth.Role
		Expect(json.Unmarshal(out.Data, &role)).To(Succeed())

		status, out = call(http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":     "grace@example.com",
			"password":  "Abc12345",
			"firstName": "Grace",
			"lastName":  "Hopper",
		}, "")
		Expect(status).To(Equal(http.StatusCreated), out.Message)
		grace := session(out)

		status, out = call(http.MethodPatch, "/api/v1/users/"+grace.User.ID.String(),
			map[string]string{"roleName": "editor"}, root)
		Expect(status).To(Equal(http.StatusOK), out.Message)

		By("refusing to delete a role that is still assigned")
		status, _ = call(http.MethodDelete, "/api/v1/roles/"+role.ID.String(), nil, root)
		Expect(status).To(Equal(http.StatusConflict))

		status, _ = call(http.MethodDelete, "/api/v1/users/"+grace.User.ID.String(), nil, root)
		Expect(status).To(Equal(http.StatusOK))
		status, _ = call(http.MethodDelete, "/api/v1/roles/"+role.ID.String(), nil, root)
		Expect(status).To(Equal(http.StatusOK))
	})

	It("keeps ordinary users out of the admin routes", func() {
		status, out := call(http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":     "user@example.com",
			"password":  "Abc12345",
			"firstName": "Plain",
			"lastName":  "User",
		}, "")
		Expect(status).To(Equal(http.StatusCreated), out.Message)
		token := session(out).AccessToken

		status, _ = call(http.MethodGet, "/api/v1/users", nil, token)
		Expect(status).To(Equal(http.StatusForbidden))
		status, _ = call(http.MethodGet, "/api/v1/roles", nil, token)
		Expect(status).To(Equal(http.StatusForbidden))
		status, _ = call(http.MethodGet, "/api/v1/roles", nil, "")
		Expect(status).To(Equal(http.StatusUnauthorized))
	})
})
