package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
	"github.com/platinummonkey/crewdeck/pkg/roles"
)

// Role decisions carry no super-admin pre-check: system roles are immutable
// for everyone, super admins included, and regular role edits run through the
// tenant-scoped grant like any other member's.

// CanListRoles checks the collection view ability
func (e *Engine) CanListRoles(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.RolesViewAny)
	if err != nil {
		return false, err
	}
	return e.observe("role", AbilityViewAny, granted), nil
}

// CanCreateRole checks role creation in the active organization
func (e *Engine) CanCreateRole(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.RolesCreate)
	if err != nil {
		return false, err
	}
	return e.observe("role", AbilityCreate, granted), nil
}

// CanViewRole checks the view ability on a role visible to the active
// organization (its own roles and global ones).
func (e *Engine) CanViewRole(ctx context.Context, principal *auth.User, role *roles.Role) (bool, error) {
	if !roleVisibleToOrg(ctx, role) {
		return e.observe("role", AbilityView, false), nil
	}

	granted, err := e.allows(ctx, principal, permissions.RolesView)
	if err != nil {
		return false, err
	}
	return e.observe("role", AbilityView, granted), nil
}

// CanUpdateRole denies system roles outright, then requires the update
// permission on an organization-local role.
func (e *Engine) CanUpdateRole(ctx context.Context, principal *auth.User, role *roles.Role) (bool, error) {
	if role.IsSystem || !roleOwnedByOrg(ctx, role) {
		return e.observe("role", AbilityUpdate, false), nil
	}

	granted, err := e.allows(ctx, principal, permissions.RolesUpdate)
	if err != nil {
		return false, err
	}
	return e.observe("role", AbilityUpdate, granted), nil
}

// CanDeleteRole denies system roles outright, then requires the delete
// permission on an organization-local role.
func (e *Engine) CanDeleteRole(ctx context.Context, principal *auth.User, role *roles.Role) (bool, error) {
	if role.IsSystem || !roleOwnedByOrg(ctx, role) {
		return e.observe("role", AbilityDelete, false), nil
	}

	granted, err := e.allows(ctx, principal, permissions.RolesDelete)
	if err != nil {
		return false, err
	}
	return e.observe("role", AbilityDelete, granted), nil
}

// roleVisibleToOrg reports whether the role belongs to the active organization
// or is global.
func roleVisibleToOrg(ctx context.Context, role *roles.Role) bool {
	if role.IsGlobal() {
		return true
	}
	orgID, ok := activeOrg(ctx)
	return ok && *role.OrganizationID == orgID
}

// roleOwnedByOrg reports whether the role is local to the active organization.
// Global roles are owned by no organization and cannot be edited through
// tenant grants.
func roleOwnedByOrg(ctx context.Context, role *roles.Role) bool {
	if role.IsGlobal() {
		return false
	}
	orgID, ok := activeOrg(ctx)
	return ok && *role.OrganizationID == orgID
}
