// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package auth implements the identity and credential lifecycle for Guideli.
//
// # Domain Types
//
// User, Profile and Role are plain data structs. A User owns exactly one Profile and
// references its Role by name. Persistence goes through CredentialStore, which wraps the
// repositories and hashes User.Password on every write where it is set.
//
// # Services
//
//   - IdentityService - registration, local authentication, email confirmation, password reset
//   - RoleService - role lookup and CRUD
//   - Seeder - idempotent default roles and super-admin account
//   - Authenticator - session issuance, federated login, bearer validation
//   - RoleGuard - role-set authorization predicate
//
// Services are created with New* constructors that validate dependencies.
package auth
