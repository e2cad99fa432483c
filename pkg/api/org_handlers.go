package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/audit"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
	"github.com/platinummonkey/crewdeck/pkg/orgs"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
	"github.com/platinummonkey/crewdeck/pkg/tenant"
)

// OrgHandlers handles organization-related HTTP requests
type OrgHandlers struct {
	orgService *orgs.PostgresService
	resolver   *tenant.Resolver
	engine     *authz.Engine
	checker    *authz.PermissionChecker
	auditLog   *audit.Store
	onSwitch   func()
}

// NewOrgHandlers creates a new OrgHandlers
func NewOrgHandlers(orgService *orgs.PostgresService, resolver *tenant.Resolver, engine *authz.Engine, checker *authz.PermissionChecker) *OrgHandlers {
	return &OrgHandlers{
		orgService: orgService,
		resolver:   resolver,
		engine:     engine,
		checker:    checker,
	}
}

// WithSwitchObserver registers a callback fired on each successful
// organization switch (e.g. a metrics counter).
func (h *OrgHandlers) WithSwitchObserver(fn func()) *OrgHandlers {
	h.onSwitch = fn
	return h
}

// WithAudit attaches an audit store. Recording is best effort.
func (h *OrgHandlers) WithAudit(store *audit.Store) *OrgHandlers {
	h.auditLog = store
	return h
}

func (h *OrgHandlers) record(r *http.Request, entry *audit.Entry) {
	if h.auditLog == nil {
		return
	}
	_ = h.auditLog.Record(r.Context(), entry)
}

// RegisterRoutes registers organization routes
func (h *OrgHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.Register).Methods("POST")
	router.HandleFunc("/organizations", h.ListOrganizations).Methods("GET")
	router.HandleFunc("/organizations/switch", h.SwitchOrganization).Methods("POST")
	router.HandleFunc("/organizations/{id}", h.GetOrganization).Methods("GET")
	router.HandleFunc("/organizations/{id}", h.UpdateOrganization).Methods("PUT")
	router.HandleFunc("/organizations/{id}", h.DeactivateOrganization).Methods("DELETE")

	// Members
	router.HandleFunc("/organizations/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/organizations/{id}/members", h.AddMember).Methods("POST")
	router.HandleFunc("/organizations/{id}/members/{user_id}", h.UpdateMemberRole).Methods("PUT")
	router.HandleFunc("/organizations/{id}/members/{user_id}", h.RemoveMember).Methods("DELETE")

	// Invitations
	router.HandleFunc("/organizations/{id}/invitations", h.CreateInvitation).Methods("POST")
	router.HandleFunc("/organizations/{id}/invitations/{invitation_id}", h.RevokeInvitation).Methods("DELETE")
	router.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods("POST")

	// Audit trail
	router.HandleFunc("/audit-log", h.ListAuditLog).Methods("GET")
}

// Register creates an organization for the authenticated user: the org, its
// Owner role, the membership and the user's default org in one transaction.
func (h *OrgHandlers) Register(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		OrganizationName string `json:"organization_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrganizationName == "" {
		writeError(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	result, err := h.orgService.Register(r.Context(), orgs.RegisterRequest{
		OrganizationName: req.OrganizationName,
		UserID:           principal.ID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register organization")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListOrganizations lists the authenticated user's organizations
func (h *OrgHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	list, err := h.orgService.ListOrganizations(r.Context(), principal.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// SwitchOrganization performs an explicit tenant switch. Switching to an
// organization the user does not belong to is rejected, never silently
// redirected elsewhere.
func (h *OrgHandlers) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		OrganizationID int64 `json:"organization_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrganizationID <= 0 {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	if err := h.resolver.Switch(r.Context(), principal, req.OrganizationID); err != nil {
		if errors.Is(err, orgs.ErrNotAMember) {
			writeError(w, http.StatusForbidden, "not a member of the organization")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to switch organization")
		return
	}

	if h.onSwitch != nil {
		h.onSwitch()
	}
	h.record(r, &audit.Entry{
		OrganizationID: req.OrganizationID,
		ActorID:        principal.ID,
		Action:         audit.ActionTenantSwitch,
		TargetType:     "organization",
		TargetID:       req.OrganizationID,
	})
	writeJSON(w, http.StatusOK, map[string]int64{"organization_id": req.OrganizationID})
}

// GetOrganization retrieves an organization
func (h *OrgHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanViewOrganization(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// UpdateOrganization updates an organization's name or settings
func (h *OrgHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanUpdateOrganization(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req orgs.UpdateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.orgService.UpdateOrganization(r.Context(), id, &req); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update organization")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeactivateOrganization soft-disables an organization
func (h *OrgHandlers) DeactivateOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanDeleteOrganization(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.orgService.DeactivateOrganization(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to deactivate organization")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers lists members of an organization
func (h *OrgHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanViewOrganization(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	members, err := h.orgService.ListMembers(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// AddMember adds a user to an organization
func (h *OrgHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanInviteMembers(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		UserID int64  `json:"user_id"`
		RoleID *int64 `json:"role_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.orgService.AddMember(r.Context(), id, req.UserID, req.RoleID, &principal.ID); err != nil {
		if errors.Is(err, orgs.ErrForeignRole) {
			writeError(w, http.StatusBadRequest, "role does not belong to the organization")
			return
		}
		writeError(w, http.StatusConflict, "member already exists")
		return
	}

	h.checker.InvalidateUser(req.UserID)
	h.record(r, &audit.Entry{
		OrganizationID: id,
		ActorID:        principal.ID,
		Action:         audit.ActionMemberAdd,
		TargetType:     "user",
		TargetID:       req.UserID,
	})
	w.WriteHeader(http.StatusCreated)
}

// UpdateMemberRole changes a member's role
func (h *OrgHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanInviteMembers(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		RoleID *int64 `json:"role_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.orgService.UpdateMemberRole(r.Context(), id, userID, req.RoleID); err != nil {
		if errors.Is(err, orgs.ErrForeignRole) {
			writeError(w, http.StatusBadRequest, "role does not belong to the organization")
			return
		}
		if errors.Is(err, orgs.ErrNotAMember) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update member role")
		return
	}

	h.checker.InvalidateUser(userID)
	h.record(r, &audit.Entry{
		OrganizationID: id,
		ActorID:        principal.ID,
		Action:         audit.ActionMemberRoleChange,
		TargetType:     "user",
		TargetID:       userID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RemoveMember removes a user from an organization
func (h *OrgHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanInviteMembers(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.orgService.RemoveMember(r.Context(), id, userID); err != nil {
		if errors.Is(err, orgs.ErrNotAMember) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.checker.InvalidateUser(userID)
	h.record(r, &audit.Entry{
		OrganizationID: id,
		ActorID:        principal.ID,
		Action:         audit.ActionMemberRemove,
		TargetType:     "user",
		TargetID:       userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// CreateInvitation invites an email address to an organization
func (h *OrgHandlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanInviteMembers(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		Email  string `json:"email"`
		RoleID *int64 `json:"role_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	invitation := &orgs.Invitation{
		OrgID:     id,
		Email:     req.Email,
		RoleID:    req.RoleID,
		InvitedBy: principal.ID,
	}
	if err := h.orgService.CreateInvitation(r.Context(), invitation); err != nil {
		if errors.Is(err, orgs.ErrForeignRole) {
			writeError(w, http.StatusBadRequest, "role does not belong to the organization")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create invitation")
		return
	}

	h.record(r, &audit.Entry{
		OrganizationID: id,
		ActorID:        principal.ID,
		Action:         audit.ActionInvitationCreate,
		TargetType:     "invitation",
		TargetID:       invitation.ID,
		Detail:         map[string]interface{}{"email": req.Email},
	})
	writeJSON(w, http.StatusCreated, invitation)
}

// RevokeInvitation revokes a pending invitation
func (h *OrgHandlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization ID")
		return
	}
	invitationID, err := pathID(r, "invitation_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invitation ID")
		return
	}

	org, err := h.orgService.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	allowed, err := h.engine.CanInviteMembers(r.Context(), principal, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.orgService.RevokeInvitation(r.Context(), invitationID); err != nil {
		writeError(w, http.StatusNotFound, "invitation not found or already accepted")
		return
	}

	h.record(r, &audit.Entry{
		OrganizationID: id,
		ActorID:        principal.ID,
		Action:         audit.ActionInvitationRevoke,
		TargetType:     "invitation",
		TargetID:       invitationID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// AcceptInvitation accepts an invitation on behalf of the authenticated user
func (h *OrgHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	token := mux.Vars(r)["token"]
	if err := h.orgService.AcceptInvitation(r.Context(), token, principal.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.checker.InvalidateUser(principal.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ListAuditLog returns recent audit entries for the active organization
func (h *OrgHandlers) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.auditLog == nil {
		writeError(w, http.StatusNotFound, "audit log not enabled")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	orgID, _ := sc.OrgID()
	granted, err := h.checker.HasPermission(r.Context(), principal.ID, orgID, permissions.OrganizationsUpdate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !granted {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	entries, err := h.auditLog.List(r.Context(), sc, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
