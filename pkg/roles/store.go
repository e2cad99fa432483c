package roles

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/crewdeck/pkg/permissions"
)

// Store handles role persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRole creates a new role. A non-nil OrganizationID makes the role local
// to that organization; nil makes it global.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (name, slug, description, is_system, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		role.Name, role.Slug, role.Description, role.IsSystem, role.OrganizationID,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetRole retrieves a role by ID, including its permission set
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT id, name, slug, description, is_system, organization_id, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %d", roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	perms, err := s.getRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms

	return role, nil
}

// GetRoleBySlug retrieves a role by slug, preferring an organization-local role
// over a global one with the same slug.
func (s *Store) GetRoleBySlug(ctx context.Context, slug string, organizationID *int64) (*Role, error) {
	query := `
		SELECT id, name, slug, description, is_system, organization_id, created_at, updated_at
		FROM roles
		WHERE slug = $1 AND (organization_id = $2 OR organization_id IS NULL)
		ORDER BY organization_id DESC NULLS LAST
		LIMIT 1
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, slug, organizationID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %s", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	perms, err := s.getRolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms

	return role, nil
}

// ListRoles lists the roles usable within an organization: its local roles plus
// all global roles.
func (s *Store) ListRoles(ctx context.Context, organizationID int64) ([]Role, error) {
	query := `
		SELECT id, name, slug, description, is_system, organization_id, created_at, updated_at
		FROM roles
		WHERE organization_id = $1 OR organization_id IS NULL
		ORDER BY is_system DESC, name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var list []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		list = append(list, *role)
	}

	return list, rows.Err()
}

// UpdateRole updates a role's name and description. System roles reject the
// update unconditionally.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	existing, err := s.GetRole(ctx, role.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRole
	}

	query := `
		UPDATE roles
		SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := s.db.ExecContext(ctx, query, role.Name, role.Description, role.ID); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	return nil
}

// DeleteRole deletes a role. System roles reject the delete unconditionally.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	return nil
}

// HasPermission reports whether the role's permission set contains slug
func (s *Store) HasPermission(ctx context.Context, roleID int64, slug string) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND p.slug = $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, roleID, slug).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return count > 0, nil
}

// AssignPermissions replaces the role's permission set atomically. The
// operation is a set-replace, not additive: calling it twice with the same IDs
// yields the same set as calling it once.
func (s *Store) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear permissions: %w", err)
	}

	for _, permID := range permissionIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`,
			roleID, permID,
		)
		if err != nil {
			return fmt.Errorf("failed to assign permission %d: %w", permID, err)
		}
	}

	return tx.Commit()
}

// CreateOwnerRole creates the system Owner role for a new organization inside
// the caller's transaction, pre-loaded with the entire permission catalog.
func CreateOwnerRole(ctx context.Context, tx *sql.Tx, orgID int64) (int64, error) {
	var roleID int64
	query := `
		INSERT INTO roles (name, slug, description, is_system, organization_id, created_at, updated_at)
		VALUES ('Owner', $1, 'Full access to the organization', true, $2, NOW(), NOW())
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query, OwnerRoleSlug, orgID).Scan(&roleID); err != nil {
		return 0, fmt.Errorf("failed to create owner role: %w", err)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) SELECT $1, id FROM permissions`,
		roleID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to grant catalog to owner role: %w", err)
	}

	return roleID, nil
}

// getRolePermissions loads the permission set for a role
func (s *Store) getRolePermissions(ctx context.Context, roleID int64) ([]permissions.Permission, error) {
	query := `
		SELECT p.id, p.slug, p.permission_group
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	defer rows.Close()

	var perms []permissions.Permission
	for rows.Next() {
		var p permissions.Permission
		if err := rows.Scan(&p.ID, &p.Slug, &p.Group); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}

	return perms, rows.Err()
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var orgID sql.NullInt64

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.Slug,
		&role.Description,
		&role.IsSystem,
		&orgID,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		id := orgID.Int64
		role.OrganizationID = &id
	}

	return &role, nil
}
