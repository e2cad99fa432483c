package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/allocations"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
)

// AllocationHandlers handles resource allocation requests
type AllocationHandlers struct {
	store  *allocations.Store
	engine *authz.Engine
}

// NewAllocationHandlers creates a new AllocationHandlers
func NewAllocationHandlers(store *allocations.Store, engine *authz.Engine) *AllocationHandlers {
	return &AllocationHandlers{store: store, engine: engine}
}

// RegisterRoutes registers allocation routes
func (h *AllocationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/allocations", h.ListAllocations).Methods("GET")
	router.HandleFunc("/allocations", h.CreateAllocation).Methods("POST")
	router.HandleFunc("/allocations/{id}", h.GetAllocation).Methods("GET")
	router.HandleFunc("/allocations/{id}", h.UpdateAllocation).Methods("PUT")
	router.HandleFunc("/allocations/{id}", h.DeleteAllocation).Methods("DELETE")
}

// allocationRequest is the write payload. Dates arrive as calendar days.
type allocationRequest struct {
	UserID    int64  `json:"user_id"`
	ProjectID int64  `json:"project_id"`
	Percent   int    `json:"percent"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (req *allocationRequest) toAllocation() (*allocations.Allocation, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, err
	}
	return &allocations.Allocation{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Percent:   req.Percent,
		StartDate: start,
		EndDate:   end,
	}, nil
}

// ListAllocations lists allocations in the active organization, optionally
// filtered by the user_id query parameter.
func (h *AllocationHandlers) ListAllocations(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanListAllocations(r.Context(), principal)
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

	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = &id
	}

	list, err := h.store.ListAllocations(r.Context(), sc, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list allocations")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// CreateAllocation creates an allocation. A request that would push the
// subject user over full capacity in any overlapping window comes back as 422.
func (h *AllocationHandlers) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	allowed, err := h.engine.CanCreateAllocation(r.Context(), principal)
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

	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 || req.ProjectID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and project_id are required")
		return
	}

	alloc, err := req.toAllocation()
	if err != nil {
		writeError(w, http.StatusBadRequest, "dates must use YYYY-MM-DD")
		return
	}
	alloc.CreatedBy = &principal.ID

	if err := h.store.CreateAllocation(r.Context(), sc, alloc); err != nil {
		if allocations.IsCapacityExceeded(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, alloc)
}

// GetAllocation retrieves an allocation
func (h *AllocationHandlers) GetAllocation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	alloc, err := h.store.GetAllocation(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "allocation not found")
		return
	}

	allowed, err := h.engine.CanViewAllocation(r.Context(), principal, alloc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	writeJSON(w, http.StatusOK, alloc)
}

// UpdateAllocation replaces an allocation's percent and date range
func (h *AllocationHandlers) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	existing, err := h.store.GetAllocation(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "allocation not found")
		return
	}

	allowed, err := h.engine.CanUpdateAllocation(r.Context(), principal, existing)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The subject user is fixed at creation; updates only move percent and
	// the date range.
	alloc, err := req.toAllocation()
	if err != nil {
		writeError(w, http.StatusBadRequest, "dates must use YYYY-MM-DD")
		return
	}
	alloc.UserID = existing.UserID
	alloc.ProjectID = existing.ProjectID

	if err := h.store.UpdateAllocation(r.Context(), sc, id, alloc); err != nil {
		if allocations.IsCapacityExceeded(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, alloc)
}

// DeleteAllocation deletes an allocation. Being the allocation's subject does
// not grant deletion.
func (h *AllocationHandlers) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation ID")
		return
	}

	sc, ok := requestScope(w, r)
	if !ok {
		return
	}

	alloc, err := h.store.GetAllocation(r.Context(), sc, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "allocation not found")
		return
	}

	allowed, err := h.engine.CanDeleteAllocation(r.Context(), principal, alloc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if err := h.store.DeleteAllocation(r.Context(), sc, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete allocation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
