package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
	"github.com/platinummonkey/crewdeck/pkg/tasks"
)

// TaskHandlers handles tenant-scoped task requests
type TaskHandlers struct {
	store  *tasks.Store
	engine *authz.Engine
}

// NewTaskHandlers creates a new TaskHandlers
func NewTaskHandlers(store *tasks.Store, engine *authz.Engine) *TaskHandlers {
	return &TaskHandlers{store: store, engine: engine}
}

// RegisterRoutes registers task routes
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	router.HandleFunc("/tasks", h.CreateTask).Methods("POST")
	router.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")
	router.HandleFunc("/tasks/{id}", h.UpdateTask).Methods("PUT")
	router.HandleFunc("/tasks/{id}", h.DeleteTask).Methods("DELETE")

	router.HandleFunc("/tasks/{id}/assignees", h.AssignUser).Methods("POST")
	router.HandleFunc("/tasks/{id}/assignees/{user_id}", h.UnassignUser).Methods("DELETE")
}

// ListTasks lists the active organization's tasks, optionally filtered by the
// project_id query parameter.
func (h *TaskHandlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanListTasks(r.Context(), principal)
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

	var projectID *int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		projectID = &id
	}

	list, err := h.store.ListTasks(r.Context(), sc, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// CreateTask creates a task in the active organization
func (h *TaskHandlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanCreateTask(r.Context(), principal)
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
		ProjectID   int64      `json:"project_id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    int        `json:"priority"`
		DueDate     *time.Time `json:"due_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" || req.ProjectID <= 0 {
		writeError(w, http.StatusBadRequest, "project_id and title are required")
		return
	}

	task := &tasks.Task{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		CreatedBy:   &principal.ID,
	}
	if err := h.store.CreateTask(r.Context(), sc, task); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// GetTask retrieves a task with its assignees
func (h *TaskHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	task, err := h.store.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	allowed, err := h.engine.CanViewTask(r.Context(), principal, task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// UpdateTask applies a partial update to a task
func (h *TaskHandlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	task, err := h.store.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	allowed, err := h.engine.CanUpdateTask(r.Context(), principal, task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req tasks.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateTask(r.Context(), sc, id, &req); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	updated, err := h.store.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload task")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask deletes a task. Assignment grants view and update, never delete,
// so this route runs on the delete permission alone.
func (h *TaskHandlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	task, err := h.store.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	allowed, err := h.engine.CanDeleteTask(r.Context(), principal, task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.store.DeleteTask(r.Context(), sc, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignUser assigns a user to a task
func (h *TaskHandlers) AssignUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	task, err := h.store.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	allowed, err := h.engine.CanAssignTask(r.Context(), principal, task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.store.AssignUser(r.Context(), id, req.UserID, &principal.ID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// UnassignUser removes a user from a task
func (h *TaskHandlers) UnassignUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
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

	task, err := h.store.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	allowed, err := h.engine.CanAssignTask(r.Context(), principal, task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.store.UnassignUser(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
