// Package orgs manages organizations (tenants), memberships and invitations.
package orgs

import (
	"errors"
	"time"
)

// ErrOrganizationNotFound is returned when a referenced organization does not exist
var ErrOrganizationNotFound = errors.New("organization not found")

// ErrNotAMember is returned when the user is not a member of the organization.
// An explicit tenant switch surfaces this to the caller instead of silently
// falling back to another organization.
var ErrNotAMember = errors.New("user is not a member of the organization")

// ErrForeignRole is returned when a membership or invitation references a role
// that is neither local to the organization nor global. Local roles never
// cross tenants.
var ErrForeignRole = errors.New("role does not belong to the organization")

// Organization represents a tenant
type Organization struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	IsActive  bool           `json:"is_active"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Member represents a user's membership in an organization. The pivot is keyed
// by (organization_id, user_id): a user holds at most one role per organization.
type Member struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	UserID         int64     `json:"user_id"`
	RoleID         *int64    `json:"role_id,omitempty"`
	InvitedBy      *int64    `json:"invited_by,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
}

// Invitation represents an invitation to join an organization
type Invitation struct {
	ID         int64      `json:"id"`
	OrgID      int64      `json:"org_id"`
	Email      string     `json:"email"`
	RoleID     *int64     `json:"role_id,omitempty"`
	Token      string     `json:"token,omitempty"`
	InvitedBy  int64      `json:"invited_by"`
	InvitedAt  time.Time  `json:"invited_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *int64     `json:"accepted_by,omitempty"`
}

// UpdateOrgRequest represents request to update an organization
type UpdateOrgRequest struct {
	Name     *string        `json:"name,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// RegisterRequest carries the data for a new sign-up: the user plus the
// organization created for them.
type RegisterRequest struct {
	OrganizationName string `json:"organization_name"`
	UserID           int64  `json:"user_id"`
}

// RegisterResult is the outcome of a registration transaction
type RegisterResult struct {
	Organization *Organization `json:"organization"`
	OwnerRoleID  int64         `json:"owner_role_id"`
}
