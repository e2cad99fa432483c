// Package projects persists projects, a tenant-scoped entity type.
package projects

import "time"

// Member roles within a project
const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

// Project represents a project within an organization
type Project struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CreatedBy      *int64     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ProjectMember represents a user's membership in a project
type ProjectMember struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	AddedAt   time.Time `json:"added_at"`
	AddedBy   *int64    `json:"added_by,omitempty"`
}
