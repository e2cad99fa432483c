package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
)

// CanListUsers checks the collection view ability
func (e *Engine) CanListUsers(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.UsersViewAny)
	if err != nil {
		return false, err
	}
	return e.observe("user", AbilityViewAny, granted), nil
}

// CanCreateUser checks user creation. Like all create abilities it carries no
// super-admin pre-check.
func (e *Engine) CanCreateUser(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.UsersCreate)
	if err != nil {
		return false, err
	}
	return e.observe("user", AbilityCreate, granted), nil
}

// CanViewUser allows self-view, super admins, and holders of the view
// permission when the target belongs to the active organization.
func (e *Engine) CanViewUser(ctx context.Context, principal *auth.User, target *auth.User) (bool, error) {
	if principal.ID == target.ID || principal.IsSuperAdmin {
		return e.observe("user", AbilityView, true), nil
	}

	granted, err := e.userInOrgWithPermission(ctx, principal, target, permissions.UsersView)
	if err != nil {
		return false, err
	}
	return e.observe("user", AbilityView, granted), nil
}

// CanUpdateUser allows self-update, super admins, and holders of the update
// permission when the target belongs to the active organization.
func (e *Engine) CanUpdateUser(ctx context.Context, principal *auth.User, target *auth.User) (bool, error) {
	if principal.ID == target.ID || principal.IsSuperAdmin {
		return e.observe("user", AbilityUpdate, true), nil
	}

	granted, err := e.userInOrgWithPermission(ctx, principal, target, permissions.UsersUpdate)
	if err != nil {
		return false, err
	}
	return e.observe("user", AbilityUpdate, granted), nil
}

// CanDeleteUser never allows self-deletion, for anyone. Otherwise super admins
// pass, and holders of the delete permission pass for targets in the active
// organization.
func (e *Engine) CanDeleteUser(ctx context.Context, principal *auth.User, target *auth.User) (bool, error) {
	if principal.ID == target.ID {
		return e.observe("user", AbilityDelete, false), nil
	}
	if principal.IsSuperAdmin {
		return e.observe("user", AbilityDelete, true), nil
	}

	granted, err := e.userInOrgWithPermission(ctx, principal, target, permissions.UsersDelete)
	if err != nil {
		return false, err
	}
	return e.observe("user", AbilityDelete, granted), nil
}

// userInOrgWithPermission requires the target to be a member of the active
// organization and the principal to hold the permission there. Users are not
// tenant-owned rows, so the organization gate runs on membership instead of an
// owning organization column.
func (e *Engine) userInOrgWithPermission(ctx context.Context, principal *auth.User, target *auth.User, slug string) (bool, error) {
	orgID, ok := activeOrg(ctx)
	if !ok {
		return false, nil
	}

	member, err := e.orgMembers.IsMember(ctx, orgID, target.ID)
	if err != nil {
		return false, err
	}
	if !member {
		return false, nil
	}

	return e.perms.HasPermission(ctx, principal.ID, orgID, slug)
}
