// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"slices"

	"github.com/samber/oops"
)

// RoleGuard allows a user whose role name is in a fixed set. There is no
// hierarchy: admin does not satisfy a guard that requires super_admin.
type RoleGuard struct {
	roles []string
}

// NewRoleGuard creates a guard for the given role names.
func NewRoleGuard(roles ...string) RoleGuard {
	return RoleGuard{roles: slices.Clone(roles)}
}

// Roles returns the allowed role names.
func (g RoleGuard) Roles() []string {
	return slices.Clone(g.roles)
}

// Allows reports whether the user's role is in the set. A nil user is never allowed.
func (g RoleGuard) Allows(user *User) bool {
	return user != nil && slices.Contains(g.roles, user.RoleName)
}

// Check is Allows returning ErrForbidden on refusal.
func (g RoleGuard) Check(user *User) error {
	if g.Allows(user) {
		return nil
	}
	role := ""
	if user != nil {
		role = user.RoleName
	}
	return oops.Code("AUTH_FORBIDDEN").
		With("role", role).
		With("required", g.roles).
		Wrap(ErrForbidden)
}
