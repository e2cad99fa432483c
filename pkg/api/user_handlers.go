package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/audit"
	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
)

// UserHandlers handles user profile and API token requests
type UserHandlers struct {
	users    *auth.UserStore
	tokens   *auth.TokenManager
	engine   *authz.Engine
	checker  *authz.PermissionChecker
	auditLog *audit.Store
}

// NewUserHandlers creates a new UserHandlers
func NewUserHandlers(users *auth.UserStore, tokens *auth.TokenManager, engine *authz.Engine, checker *authz.PermissionChecker) *UserHandlers {
	return &UserHandlers{
		users:   users,
		tokens:  tokens,
		engine:  engine,
		checker: checker,
	}
}

// WithAudit attaches an audit store. Recording is best effort.
func (h *UserHandlers) WithAudit(store *audit.Store) *UserHandlers {
	h.auditLog = store
	return h
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.Me).Methods("GET")
	router.HandleFunc("/me/tokens", h.ListTokens).Methods("GET")
	router.HandleFunc("/me/tokens", h.CreateToken).Methods("POST")
	router.HandleFunc("/me/tokens/{id}", h.RevokeToken).Methods("DELETE")

	router.HandleFunc("/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	router.HandleFunc("/users/{id}", h.DeactivateUser).Methods("DELETE")
}

// Me returns the authenticated user
func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

// ListTokens lists the authenticated user's API tokens
func (h *UserHandlers) ListTokens(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	tokens, err := h.tokens.ListTokens(r.Context(), principal.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// CreateToken issues a new API token for the authenticated user. The plaintext
// token appears in this response and nowhere else.
func (h *UserHandlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Name      string     `json:"name"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiToken, plaintext, err := h.tokens.CreateToken(r.Context(), principal.ID, req.Name, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":     plaintext,
		"api_token": apiToken,
	})
}

// RevokeToken revokes one of the authenticated user's tokens
func (h *UserHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token ID")
		return
	}

	token, err := h.tokens.GetToken(r.Context(), id)
	if err != nil || token.UserID != principal.ID {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), id, principal.ID, "revoked by owner"); err != nil {
		writeError(w, http.StatusNotFound, "token not found or already revoked")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateUser creates a user account. Accounts authenticate with API tokens;
// there is no password login surface.
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanCreateUser(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	user := &auth.User{Name: req.Name, Email: req.Email}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusConflict, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser retrieves a user
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	target, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	allowed, err := h.engine.CanViewUser(r.Context(), principal, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	writeJSON(w, http.StatusOK, target)
}

// UpdateUser updates a user's profile fields
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	target, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	allowed, err := h.engine.CanUpdateUser(r.Context(), principal, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	target.Name = req.Name
	target.Email = req.Email
	if err := h.users.UpdateUser(r.Context(), target); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, target)
}

// DeactivateUser deactivates a user account. Self-deactivation over this route
// is rejected for everyone, super admins included.
func (h *UserHandlers) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	target, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	allowed, err := h.engine.CanDeleteUser(r.Context(), principal, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	h.checker.InvalidateUser(id)
	if h.auditLog != nil {
		if orgID, ok := contextkeys.GetTenant(r.Context()); ok {
			_ = h.auditLog.Record(r.Context(), &audit.Entry{
				OrganizationID: orgID,
				ActorID:        principal.ID,
				Action:         audit.ActionUserDeactivate,
				TargetType:     "user",
				TargetID:       id,
			})
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
