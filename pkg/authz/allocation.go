package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/allocations"
	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
)

// CanListAllocations checks the collection view ability
func (e *Engine) CanListAllocations(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.AllocationsViewAny)
	if err != nil {
		return false, err
	}
	return e.observe("allocation", AbilityViewAny, granted), nil
}

// CanCreateAllocation checks allocation creation in the active organization
func (e *Engine) CanCreateAllocation(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.AllocationsCreate)
	if err != nil {
		return false, err
	}
	return e.observe("allocation", AbilityCreate, granted), nil
}

// CanViewAllocation allows holders of the view permission and the allocation's
// subject user.
func (e *Engine) CanViewAllocation(ctx context.Context, principal *auth.User, alloc *allocations.Allocation) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, alloc.OrganizationID); decided {
		return e.observe("allocation", AbilityView, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.AllocationsView)
	if err != nil {
		return false, err
	}
	return e.observe("allocation", AbilityView, granted || alloc.UserID == principal.ID), nil
}

// CanUpdateAllocation allows holders of the update permission and the
// allocation's subject user.
func (e *Engine) CanUpdateAllocation(ctx context.Context, principal *auth.User, alloc *allocations.Allocation) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, alloc.OrganizationID); decided {
		return e.observe("allocation", AbilityUpdate, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.AllocationsUpdate)
	if err != nil {
		return false, err
	}
	return e.observe("allocation", AbilityUpdate, granted || alloc.UserID == principal.ID), nil
}

// CanDeleteAllocation requires the delete permission. Being the subject of an
// allocation does not grant deletion.
func (e *Engine) CanDeleteAllocation(ctx context.Context, principal *auth.User, alloc *allocations.Allocation) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, alloc.OrganizationID); decided {
		return e.observe("allocation", AbilityDelete, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.AllocationsDelete)
	if err != nil {
		return false, err
	}
	return e.observe("allocation", AbilityDelete, granted), nil
}
