// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/pkg/errutil"
)

func TestNewRoleService_NilStore(t *testing.T) {
	svc, err := auth.NewRoleService(nil)
	require.Error(t, err)
	assert.Nil(t, svc)
	errutil.AssertErrorCode(t, err, "ROLE_SERVICE_INVALID")
}

func TestRoleService(t *testing.T) {
	ctx := context.Background()

	t.Run("find seeded role by name", func(t *testing.T) {
		e := newEnv(t)
		role, err := e.roles.FindByName(ctx, auth.RoleSuperAdmin)
		require.NoError(t, err)
		assert.Equal(t, "Site Super Admin", role.Description)

		byID, err := e.roles.FindByID(ctx, role.ID)
		require.NoError(t, err)
		assert.Equal(t, role.Name, byID.Name)
	})

	t.Run("missing role is NotFound", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.roles.FindByName(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		_, err = e.roles.FindByID(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("create and list", func(t *testing.T) {
		e := newEnv(t)
		created, err := e.roles.Create(ctx, "editor", "Content Editor")
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		roles, err := e.roles.List(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(roles))
		for _, r := range roles {
			names = append(names, r.Name)
		}
		assert.ElementsMatch(t, []string{"super_admin", "admin", "user", "editor"}, names)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.roles.Create(ctx, "", "nothing")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ROLE_INVALID_NAME")
	})

	t.Run("rename cascades to users", func(t *testing.T) {
		e := newEnv(t)
		user := e.register(t, "a@x.com", "Abc12345")
		role, err := e.roles.FindByName(ctx, auth.RoleUser)
		require.NoError(t, err)

		updated, err := e.roles.Update(ctx, role.ID, auth.RolePatch{Name: ptr("member")})
		require.NoError(t, err)
		assert.Equal(t, "member", updated.Name)

		stored, err := e.identity.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "member", stored.RoleName)
	})

	t.Run("update description only", func(t *testing.T) {
		e := newEnv(t)
		role, err := e.roles.FindByName(ctx, auth.RoleAdmin)
		require.NoError(t, err)

		updated, err := e.roles.Update(ctx, role.ID, auth.RolePatch{Description: ptr("Administrators")})
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, updated.Name)
		assert.Equal(t, "Administrators", updated.Description)
	})

	t.Run("remove", func(t *testing.T) {
		e := newEnv(t)
		created, err := e.roles.Create(ctx, "editor", "")
		require.NoError(t, err)

		require.NoError(t, e.roles.Remove(ctx, created.ID))
		_, err = e.roles.FindByName(ctx, "editor")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.ErrorIs(t, e.roles.Remove(ctx, created.ID), auth.ErrNotFound)
	})
}
