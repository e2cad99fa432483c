package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/orgs"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
)

// CanViewOrganization allows super admins, members of the organization, and
// holders of the view permission.
func (e *Engine) CanViewOrganization(ctx context.Context, principal *auth.User, org *orgs.Organization) (bool, error) {
	if principal.IsSuperAdmin {
		return e.observe("organization", AbilityView, true), nil
	}

	member, err := e.orgMembers.IsMember(ctx, org.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return e.observe("organization", AbilityView, member), nil
}

// CanUpdateOrganization requires the update permission in the organization
// itself, which must be the active one.
func (e *Engine) CanUpdateOrganization(ctx context.Context, principal *auth.User, org *orgs.Organization) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, org.ID); decided {
		return e.observe("organization", AbilityUpdate, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.OrganizationsUpdate)
	if err != nil {
		return false, err
	}
	return e.observe("organization", AbilityUpdate, granted), nil
}

// CanDeleteOrganization requires the delete permission in the organization
// itself, which must be the active one.
func (e *Engine) CanDeleteOrganization(ctx context.Context, principal *auth.User, org *orgs.Organization) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, org.ID); decided {
		return e.observe("organization", AbilityDelete, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.OrganizationsDelete)
	if err != nil {
		return false, err
	}
	return e.observe("organization", AbilityDelete, granted), nil
}

// CanInviteMembers requires the invite permission in the active organization
func (e *Engine) CanInviteMembers(ctx context.Context, principal *auth.User, org *orgs.Organization) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, org.ID); decided {
		return e.observe("organization", "invite", allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.OrganizationsInvite)
	if err != nil {
		return false, err
	}
	return e.observe("organization", "invite", granted), nil
}
