package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
	"github.com/platinummonkey/crewdeck/pkg/projects"
	"github.com/platinummonkey/crewdeck/pkg/scope"
)

// ProjectHandlers handles tenant-scoped project requests
type ProjectHandlers struct {
	store  *projects.Store
	engine *authz.Engine
}

// NewProjectHandlers creates a new ProjectHandlers
func NewProjectHandlers(store *projects.Store, engine *authz.Engine) *ProjectHandlers {
	return &ProjectHandlers{store: store, engine: engine}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects", h.ListProjects).Methods("GET")
	router.HandleFunc("/projects", h.CreateProject).Methods("POST")
	router.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	router.HandleFunc("/projects/{id}", h.UpdateProject).Methods("PUT")
	router.HandleFunc("/projects/{id}", h.DeleteProject).Methods("DELETE")

	router.HandleFunc("/projects/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/projects/{id}/members", h.AddMember).Methods("POST")
	router.HandleFunc("/projects/{id}/members/{user_id}", h.RemoveMember).Methods("DELETE")
}

// requestScope builds the tenant scope for the request, writing the rejection
// when no organization was resolved.
func requestScope(w http.ResponseWriter, r *http.Request) (scope.Scope, bool) {
	sc, err := scope.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "no active organization")
		return scope.Scope{}, false
	}
	return sc, true
}

// ListProjects lists the active organization's projects
func (h *ProjectHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanListProjects(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	list, err := h.store.ListProjects(r.Context(), sc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// CreateProject creates a project in the active organization
func (h *ProjectHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanCreateProject(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		DueDate     *time.Time `json:"due_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := &projects.Project{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
		CreatedBy:   &principal.ID,
	}
	if err := h.store.CreateProject(r.Context(), sc, project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// GetProject retrieves a project
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	allowed, err := h.engine.CanViewProject(r.Context(), principal, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// UpdateProject applies a partial update to a project
func (h *ProjectHandlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	allowed, err := h.engine.CanUpdateProject(r.Context(), principal, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req projects.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateProject(r.Context(), sc, id, &req); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update project")
		return
	}

	updated, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload project")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteProject deletes a project
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	allowed, err := h.engine.CanDeleteProject(r.Context(), principal, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.store.DeleteProject(r.Context(), sc, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers lists a project's members
func (h *ProjectHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	allowed, err := h.engine.CanViewProject(r.Context(), principal, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	members, err := h.store.ListMembers(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list project members")
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// AddMember adds a user to a project
func (h *ProjectHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	allowed, err := h.engine.CanManageProjectMembers(r.Context(), principal, project)
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
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.store.AddMember(r.Context(), id, req.UserID, req.Role, &principal.ID); err != nil {
		writeError(w, http.StatusConflict, "member already exists")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// RemoveMember removes a user from a project
func (h *ProjectHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	allowed, err := h.engine.CanManageProjectMembers(r.Context(), principal, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.store.RemoveMember(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
