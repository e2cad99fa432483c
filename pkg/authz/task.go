package authz

import (
	"context"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/permissions"
	"github.com/platinummonkey/crewdeck/pkg/tasks"
)

// CanListTasks checks the collection view ability
func (e *Engine) CanListTasks(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.TasksViewAny)
	if err != nil {
		return false, err
	}
	return e.observe("task", AbilityViewAny, granted), nil
}

// CanCreateTask checks task creation in the active organization
func (e *Engine) CanCreateTask(ctx context.Context, principal *auth.User) (bool, error) {
	granted, err := e.allows(ctx, principal, permissions.TasksCreate)
	if err != nil {
		return false, err
	}
	return e.observe("task", AbilityCreate, granted), nil
}

// CanViewTask allows holders of the view permission and the task's assignees
func (e *Engine) CanViewTask(ctx context.Context, principal *auth.User, task *tasks.Task) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, task.OrganizationID); decided {
		return e.observe("task", AbilityView, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.TasksView)
	if err != nil {
		return false, err
	}
	if granted {
		return e.observe("task", AbilityView, true), nil
	}

	assigned, err := e.tasks.IsAssignee(ctx, task.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return e.observe("task", AbilityView, assigned), nil
}

// CanUpdateTask allows holders of the update permission and the task's
// assignees.
func (e *Engine) CanUpdateTask(ctx context.Context, principal *auth.User, task *tasks.Task) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, task.OrganizationID); decided {
		return e.observe("task", AbilityUpdate, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.TasksUpdate)
	if err != nil {
		return false, err
	}
	if granted {
		return e.observe("task", AbilityUpdate, true), nil
	}

	assigned, err := e.tasks.IsAssignee(ctx, task.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return e.observe("task", AbilityUpdate, assigned), nil
}

// CanDeleteTask requires the delete permission. Being assigned to a task does
// not grant deletion.
func (e *Engine) CanDeleteTask(ctx context.Context, principal *auth.User, task *tasks.Task) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, task.OrganizationID); decided {
		return e.observe("task", AbilityDelete, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.TasksDelete)
	if err != nil {
		return false, err
	}
	return e.observe("task", AbilityDelete, granted), nil
}

// CanAssignTask checks the assign ability on an existing task
func (e *Engine) CanAssignTask(ctx context.Context, principal *auth.User, task *tasks.Task) (bool, error) {
	if allowed, decided := entityGate(ctx, principal, task.OrganizationID); decided {
		return e.observe("task", AbilityAssign, allowed), nil
	}

	granted, err := e.allows(ctx, principal, permissions.TasksAssign)
	if err != nil {
		return false, err
	}
	return e.observe("task", AbilityAssign, granted), nil
}
