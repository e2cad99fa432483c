// Package audit records security-relevant events: tenant switches, membership
// and role changes, account deactivation. Entries are organization-scoped and
// append-only; reads go through the same scope predicate as every other
// tenant-scoped store.
package audit

import "time"

// Action identifies what happened
type Action string

const (
	ActionTenantSwitch     Action = "tenant.switch"
	ActionMemberAdd        Action = "org.member_add"
	ActionMemberRoleChange Action = "org.member_role_change"
	ActionMemberRemove     Action = "org.member_remove"
	ActionInvitationCreate Action = "org.invitation_create"
	ActionInvitationRevoke Action = "org.invitation_revoke"
	ActionInvitationAccept Action = "org.invitation_accept"
	ActionRoleCreate       Action = "role.create"
	ActionRoleUpdate       Action = "role.update"
	ActionRoleDelete       Action = "role.delete"
	ActionPermissionsSet   Action = "role.permissions_set"
	ActionUserDeactivate   Action = "user.deactivate"
)

// Entry is a single audit record
type Entry struct {
	ID             int64                  `json:"id"`
	OrganizationID int64                  `json:"organization_id"`
	ActorID        int64                  `json:"actor_id"`
	Action         Action                 `json:"action"`
	TargetType     string                 `json:"target_type,omitempty"`
	TargetID       int64                  `json:"target_id,omitempty"`
	RequestID      string                 `json:"request_id,omitempty"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
