// Package roles persists roles and their permission sets.
//
// A role either belongs to one organization (organization_id set) or is global
// (organization_id NULL) and assignable in every organization. System roles,
// such as the Owner role created with each organization, can never be updated
// or deleted.
package roles

import (
	"errors"
	"time"

	"github.com/platinummonkey/crewdeck/pkg/permissions"
)

// ErrSystemRole is returned for any attempt to update or delete a system role.
// The rejection is unconditional and independent of the caller's permissions.
var ErrSystemRole = errors.New("system roles cannot be modified")

// OwnerRoleSlug is the slug of the system role created with each organization
const OwnerRoleSlug = "owner"

// Role binds a named role to a set of permissions
type Role struct {
	ID             int64                    `json:"id"`
	Name           string                   `json:"name"`
	Slug           string                   `json:"slug"`
	Description    string                   `json:"description,omitempty"`
	IsSystem       bool                     `json:"is_system"`
	OrganizationID *int64                   `json:"organization_id,omitempty"` // nil for global roles
	Permissions    []permissions.Permission `json:"permissions,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// IsGlobal reports whether the role is shared across all organizations
func (r *Role) IsGlobal() bool {
	return r.OrganizationID == nil
}

// HasPermission reports whether the role's loaded permission set contains slug.
// Only meaningful on roles loaded with their permissions.
func (r *Role) HasPermission(slug string) bool {
	for _, p := range r.Permissions {
		if p.Slug == slug {
			return true
		}
	}
	return false
}
