// Package permissions defines the static permission catalog.
//
// The catalog is immutable at runtime: slugs are seeded into the database once
// and referenced by roles. Slugs follow the "<group>.<action>" convention,
// e.g. "projects.create".
package permissions

// Group tags a set of related permissions
type Group string

const (
	GroupProjects      Group = "projects"
	GroupTasks         Group = "tasks"
	GroupResources     Group = "resources"
	GroupUsers         Group = "users"
	GroupRoles         Group = "roles"
	GroupOrganizations Group = "organizations"
)

// Permission is a single catalog entry
type Permission struct {
	ID    int64  `json:"id,omitempty"`
	Slug  string `json:"slug"`
	Group Group  `json:"group"`
}

// Project permissions
const (
	ProjectsViewAny       = "projects.view_any"
	ProjectsView          = "projects.view"
	ProjectsCreate        = "projects.create"
	ProjectsUpdate        = "projects.update"
	ProjectsDelete        = "projects.delete"
	ProjectsManageMembers = "projects.manage_members"
)

// Task permissions
const (
	TasksViewAny = "tasks.view_any"
	TasksView    = "tasks.view"
	TasksCreate  = "tasks.create"
	TasksUpdate  = "tasks.update"
	TasksDelete  = "tasks.delete"
	TasksAssign  = "tasks.assign"
)

// Resource allocation permissions
const (
	AllocationsViewAny = "resources.view_any"
	AllocationsView    = "resources.view"
	AllocationsCreate  = "resources.create"
	AllocationsUpdate  = "resources.update"
	AllocationsDelete  = "resources.delete"
)

// User permissions
const (
	UsersViewAny = "users.view_any"
	UsersView    = "users.view"
	UsersCreate  = "users.create"
	UsersUpdate  = "users.update"
	UsersDelete  = "users.delete"
)

// Role permissions
const (
	RolesViewAny = "roles.view_any"
	RolesView    = "roles.view"
	RolesCreate  = "roles.create"
	RolesUpdate  = "roles.update"
	RolesDelete  = "roles.delete"
)

// Organization permissions
const (
	OrganizationsView   = "organizations.view"
	OrganizationsUpdate = "organizations.update"
	OrganizationsDelete = "organizations.delete"
	OrganizationsInvite = "organizations.invite"
)

// All returns every permission in the catalog, in seed order.
func All() []Permission {
	return []Permission{
		{Slug: ProjectsViewAny, Group: GroupProjects},
		{Slug: ProjectsView, Group: GroupProjects},
		{Slug: ProjectsCreate, Group: GroupProjects},
		{Slug: ProjectsUpdate, Group: GroupProjects},
		{Slug: ProjectsDelete, Group: GroupProjects},
		{Slug: ProjectsManageMembers, Group: GroupProjects},

		{Slug: TasksViewAny, Group: GroupTasks},
		{Slug: TasksView, Group: GroupTasks},
		{Slug: TasksCreate, Group: GroupTasks},
		{Slug: TasksUpdate, Group: GroupTasks},
		{Slug: TasksDelete, Group: GroupTasks},
		{Slug: TasksAssign, Group: GroupTasks},

		{Slug: AllocationsViewAny, Group: GroupResources},
		{Slug: AllocationsView, Group: GroupResources},
		{Slug: AllocationsCreate, Group: GroupResources},
		{Slug: AllocationsUpdate, Group: GroupResources},
		{Slug: AllocationsDelete, Group: GroupResources},

		{Slug: UsersViewAny, Group: GroupUsers},
		{Slug: UsersView, Group: GroupUsers},
		{Slug: UsersCreate, Group: GroupUsers},
		{Slug: UsersUpdate, Group: GroupUsers},
		{Slug: UsersDelete, Group: GroupUsers},

		{Slug: RolesViewAny, Group: GroupRoles},
		{Slug: RolesView, Group: GroupRoles},
		{Slug: RolesCreate, Group: GroupRoles},
		{Slug: RolesUpdate, Group: GroupRoles},
		{Slug: RolesDelete, Group: GroupRoles},

		{Slug: OrganizationsView, Group: GroupOrganizations},
		{Slug: OrganizationsUpdate, Group: GroupOrganizations},
		{Slug: OrganizationsDelete, Group: GroupOrganizations},
		{Slug: OrganizationsInvite, Group: GroupOrganizations},
	}
}

// ByGroup returns the catalog entries belonging to a group.
func ByGroup(group Group) []Permission {
	var out []Permission
	for _, p := range All() {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out
}

// Groups returns all known groups in catalog order.
func Groups() []Group {
	return []Group{
		GroupProjects,
		GroupTasks,
		GroupResources,
		GroupUsers,
		GroupRoles,
		GroupOrganizations,
	}
}

// Exists reports whether a slug is part of the catalog.
func Exists(slug string) bool {
	for _, p := range All() {
		if p.Slug == slug {
			return true
		}
	}
	return false
}
