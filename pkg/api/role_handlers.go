package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/audit"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
	"github.com/platinummonkey/crewdeck/pkg/roles"
)

// RoleHandlers handles role and permission catalog requests
type RoleHandlers struct {
	roleStore *roles.Store
	engine    *authz.Engine
	checker   *authz.PermissionChecker
	auditLog  *audit.Store
}

// NewRoleHandlers creates a new RoleHandlers
func NewRoleHandlers(roleStore *roles.Store, engine *authz.Engine, checker *authz.PermissionChecker) *RoleHandlers {
	return &RoleHandlers{
		roleStore: roleStore,
		engine:    engine,
		checker:   checker,
	}
}

// WithAudit attaches an audit store. Recording is best effort.
func (h *RoleHandlers) WithAudit(store *audit.Store) *RoleHandlers {
	h.auditLog = store
	return h
}

func (h *RoleHandlers) record(r *http.Request, action audit.Action, actorID, roleID int64, detail map[string]interface{}) {
	if h.auditLog == nil {
		return
	}
	orgID, ok := contextkeys.GetTenant(r.Context())
	if !ok {
		return
	}
	_ = h.auditLog.Record(r.Context(), &audit.Entry{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		TargetType:     "role",
		TargetID:       roleID,
		Detail:         detail,
	})
}

// RegisterRoutes registers role routes
func (h *RoleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/permissions", h.ListPermissions).Methods("GET")
	router.HandleFunc("/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/roles/{id}", h.GetRole).Methods("GET")
	router.HandleFunc("/roles/{id}", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/roles/{id}", h.DeleteRole).Methods("DELETE")
	router.HandleFunc("/roles/{id}/permissions", h.AssignPermissions).Methods("PUT")
}

// ListPermissions returns the static permission catalog
func (h *RoleHandlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissions.All())
}

// ListRoles lists the roles usable in the active organization
func (h *RoleHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanListRoles(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	orgID, ok := contextkeys.GetTenant(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "no active organization")
		return
	}

	list, err := h.roleStore.ListRoles(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// CreateRole creates an organization-local role
func (h *RoleHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanCreateRole(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	orgID, ok := contextkeys.GetTenant(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "no active organization")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	// Roles created over the API are always organization-local, never
	// global and never system.
	role := &roles.Role{
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		OrganizationID: &orgID,
	}
	if err := h.roleStore.CreateRole(r.Context(), role); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create role")
		return
	}

	h.record(r, audit.ActionRoleCreate, principal.ID, role.ID, map[string]interface{}{"slug": role.Slug})
	writeJSON(w, http.StatusCreated, role)
}

// GetRole retrieves a role with its permission set
func (h *RoleHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	role, err := h.roleStore.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}

	allowed, err := h.engine.CanViewRole(r.Context(), principal, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	writeJSON(w, http.StatusOK, role)
}

// UpdateRole updates a role's name and description
func (h *RoleHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	role, err := h.roleStore.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}

	allowed, err := h.engine.CanUpdateRole(r.Context(), principal, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	role.Name = req.Name
	role.Description = req.Description
	if err := h.roleStore.UpdateRole(r.Context(), role); err != nil {
		if errors.Is(err, roles.ErrSystemRole) {
			writeError(w, http.StatusForbidden, "system roles cannot be modified")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	h.record(r, audit.ActionRoleUpdate, principal.ID, id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteRole deletes a role
func (h *RoleHandlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	role, err := h.roleStore.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}

	allowed, err := h.engine.CanDeleteRole(r.Context(), principal, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.roleStore.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, roles.ErrSystemRole) {
			writeError(w, http.StatusForbidden, "system roles cannot be modified")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete role")
		return
	}

	h.checker.InvalidateAll()
	h.record(r, audit.ActionRoleDelete, principal.ID, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// AssignPermissions replaces a role's permission set. Any user holding the
// role sees the change on their next permission check, so the whole
// permission cache is flushed.
func (h *RoleHandlers) AssignPermissions(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	role, err := h.roleStore.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}

	allowed, err := h.engine.CanUpdateRole(r.Context(), principal, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		PermissionIDs []int64 `json:"permission_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.roleStore.AssignPermissions(r.Context(), id, req.PermissionIDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign permissions")
		return
	}

	h.checker.InvalidateAll()
	h.record(r, audit.ActionPermissionsSet, principal.ID, id, map[string]interface{}{"permissions": len(req.PermissionIDs)})
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
