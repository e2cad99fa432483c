package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
)

// Abilities checked against entities
const (
	AbilityViewAny       = "view_any"
	AbilityView          = "view"
	AbilityCreate        = "create"
	AbilityUpdate        = "update"
	AbilityDelete        = "delete"
	AbilityManageMembers = "manage_members"
	AbilityAssign        = "assign"
)

// ProjectMembers answers project membership questions for overrides.
// Implemented by projects.Store.
type ProjectMembers interface {
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	IsOwner(ctx context.Context, projectID, userID int64) (bool, error)
}

// TaskAssignees answers task assignment questions for overrides.
// Implemented by tasks.Store.
type TaskAssignees interface {
	IsAssignee(ctx context.Context, taskID, userID int64) (bool, error)
}

// OrgMembers answers organization membership questions.
// Implemented by orgs.PostgresService.
type OrgMembers interface {
	IsMember(ctx context.Context, orgID, userID int64) (bool, error)
}

// Observer is notified of authorization outcomes. Optional.
type Observer interface {
	AuthzDecision(entity, ability string, allowed bool)
}

// Engine evaluates authorization decisions. Each decision runs, in order: a
// super-admin pre-check on abilities that target an existing entity, an
// organization match between the entity and the active tenant, then the
// permission grant with any relationship override for the entity type.
//
// The pre-check never applies to create or list abilities: a super admin
// cannot create entities inside an organization without holding the create
// permission there. It also never applies to role decisions; system roles stay
// immutable for everyone.
type Engine struct {
	perms      *PermissionChecker
	projects   ProjectMembers
	tasks      TaskAssignees
	orgMembers OrgMembers
	observer   Observer
}

// NewEngine creates an authorization engine
func NewEngine(perms *PermissionChecker, projects ProjectMembers, tasks TaskAssignees, orgMembers OrgMembers) *Engine {
	return &Engine{
		perms:      perms,
		projects:   projects,
		tasks:      tasks,
		orgMembers: orgMembers,
	}
}

// WithObserver attaches a decision observer (e.g. metrics)
func (e *Engine) WithObserver(observer Observer) *Engine {
	e.observer = observer
	return e
}

// activeOrg returns the resolved tenant. Decisions with no resolved tenant
// always deny.
func activeOrg(ctx context.Context) (int64, bool) {
	return contextkeys.GetTenant(ctx)
}

// allows runs the permission join in the active organization
func (e *Engine) allows(ctx context.Context, principal *auth.User, slug string) (bool, error) {
	orgID, ok := activeOrg(ctx)
	if !ok {
		return false, nil
	}
	return e.perms.HasPermission(ctx, principal.ID, orgID, slug)
}

// entityGate applies the super-admin pre-check and the organization match for
// an ability targeting an existing tenant-scoped entity. decided=true means
// the decision is final.
func entityGate(ctx context.Context, principal *auth.User, entityOrgID int64) (allowed, decided bool) {
	if principal.IsSuperAdmin {
		return true, true
	}
	orgID, ok := activeOrg(ctx)
	if !ok || orgID != entityOrgID {
		return false, true
	}
	return false, false
}

func (e *Engine) observe(entity, ability string, allowed bool) bool {
	if e.observer != nil {
		e.observer.AuthzDecision(entity, ability, allowed)
	}
	return allowed
}
