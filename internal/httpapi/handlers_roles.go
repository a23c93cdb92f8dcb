// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi

import (
	"net/http"
	"strings"

	"github.com/guideli/guideli/internal/auth"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.roles.List(r.Context())
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "roles retrieved", roles)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := checkRequired("name", name); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	role, err := a.roles.Create(r.Context(), name, strings.TrimSpace(req.Description))
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusCreated, "role created", role)
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	role, err := a.roles.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "role retrieved", role)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	var patch auth.RolePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}

	role, err := a.roles.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "role updated", role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := a.roles.Remove(r.Context(), id); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "role deleted", nil)
}
