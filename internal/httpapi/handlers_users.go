// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (ulid.ULID, error) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return ulid.ULID{}, badRequest("id must be a valid ULID")
	}
	return id, nil
}

// superAdminOnly guards user changes an admin may not make: assigning roles
// and modifying or deleting a super admin account.
var superAdminOnly = auth.NewRoleGuard(auth.RoleSuperAdmin)

// authorizeUserWrite checks that the caller may modify the target user.
func (a *API) authorizeUserWrite(ctx context.Context, target ulid.ULID, assignsRole bool) error {
	caller, _ := UserFromContext(ctx)
	if superAdminOnly.Allows(caller) {
		return nil
	}
	if assignsRole {
		return oops.With("operation", "assign role").Wrap(superAdminOnly.Check(caller))
	}
	user, err := a.identity.Get(ctx, target)
	if err != nil {
		return err
	}
	if user.RoleName == auth.RoleSuperAdmin {
		return oops.With("operation", "modify super admin").
			With("target_id", target.String()).
			Wrap(superAdminOnly.Check(caller))
	}
	return nil
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	respondOK(w, http.StatusOK, "user retrieved", user)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.identity.List(r.Context())
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "users retrieved", users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	user, err := a.identity.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "user retrieved", user)
}

func validatePatch(patch *auth.UserPatch) error {
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		patch.Email = &email
		if err := checkEmail(email); err != nil {
			return err
		}
	}
	if patch.Password != nil {
		if err := checkPassword("password", *patch.Password); err != nil {
			return err
		}
	}
	if patch.RoleName != nil {
		return checkRequired("roleName", *patch.RoleName)
	}
	return nil
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	var patch auth.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := validatePatch(&patch); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := a.authorizeUserWrite(r.Context(), id, patch.RoleName != nil); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	user, err := a.identity.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "user updated", user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := a.authorizeUserWrite(r.Context(), id, false); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := a.identity.Remove(r.Context(), id); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "user deleted", nil)
}
