package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
	"github.com/platinummonkey/crewdeck/pkg/projects"
)

// CanListProjects checks the collection view ability. No super-admin
// pre-check: listing runs through the tenant-scoped grant like any member.
func (e *Engine) CanListProjects(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.ProjectsViewAny)
	if err != nil {
		return false, err
	}
	return e.observe("project", AbilityViewAny, granted), nil
}

// CanCreateProject checks project creation in the active organization
func (e *Engine) CanCreateProject(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.ProjectsCreate)
	if err != nil {
		return false, err
	}
	return e.observe("project", AbilityCreate, granted), nil
}

// CanViewProject allows holders of the view permission and project members
func (e *Engine) CanViewProject(ctx context.Context, principal *auth.User, project *projects.Project) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, project.OrganizationID); decided {
		return e.observe("project", AbilityView, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.ProjectsView)
	if err != nil {
		return false, err
	}
	if granted {
		return e.observe("project", AbilityView, true), nil
	}

	member, err := e.projects.IsMember(ctx, project.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return e.observe("project", AbilityView, member), nil
}

// CanUpdateProject allows holders of the update permission and project members
func (e *Engine) CanUpdateProject(ctx context.Context, principal *auth.User, project *projects.Project) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, project.OrganizationID); decided {
		return e.observe("project", AbilityUpdate, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.ProjectsUpdate)
	if err != nil {
		return false, err
	}
	if granted {
		return e.observe("project", AbilityUpdate, true), nil
	}

	member, err := e.projects.IsMember(ctx, project.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return e.observe("project", AbilityUpdate, member), nil
}

// CanDeleteProject requires the delete permission. Project membership never
// substitutes for it.
func (e *Engine) CanDeleteProject(ctx context.Context, principal *auth.User, project *projects.Project) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, project.OrganizationID); decided {
		return e.observe("project", AbilityDelete, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.ProjectsDelete)
	if err != nil {
		return false, err
	}
	return e.observe("project", AbilityDelete, granted), nil
}

// CanManageProjectMembers allows holders of the manage permission and the
// project's owners.
func (e *Engine) CanManageProjectMembers(ctx context.Context, principal *auth.User, project *projects.Project) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, project.OrganizationID); decided {
		return e.observe("project", AbilityManageMembers, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.ProjectsManageMembers)
	if err != nil {
		return false, err
	}
	if granted {
		return e.observe("project", AbilityManageMembers, true), nil
	}

	owner, err := e.projects.IsOwner(ctx, project.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return e.observe("project", AbilityManageMembers, owner), nil
}
