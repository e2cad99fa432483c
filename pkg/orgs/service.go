package orgs

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platinummonkey/crewdeck/pkg/roles"
)

// PostgresService implements organization management using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateOrganization creates a new organization
func (s *PostgresService) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	org.IsActive = true

	settingsJSON, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO organizations (name, slug, is_active, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, org.Name, org.Slug, org.IsActive, settingsJSON).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// Register performs the sign-up transaction: create the organization, create
// its system Owner role pre-loaded with the full permission catalog, attach the
// registering user as a member with that role, and point the user's default
// organization at it. All-or-nothing.
func (s *PostgresService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	org := &Organization{
		Name:     req.OrganizationName,
		Slug:     generateSlug(req.OrganizationName),
		IsActive: true,
	}

	query := `
		INSERT INTO organizations (name, slug, is_active, settings, created_at, updated_at)
		VALUES ($1, $2, true, '{}', NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, org.Name, org.Slug).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	ownerRoleID, err := roles.CreateOwnerRole(ctx, tx, org.ID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role_id, joined_at)
		VALUES ($1, $2, $3, NOW())
	`, org.ID, req.UserID, ownerRoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach owner: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET current_organization_id = $1, updated_at = NOW() WHERE id = $2
	`, org.ID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to set current organization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	return &RegisterResult{Organization: org, OwnerRoleID: ownerRoleID}, nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, name, slug, is_active, settings, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, id))
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *PostgresService) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	query := `
		SELECT id, name, slug, is_active, settings, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, slug))
}

// ListOrganizations lists active organizations the user belongs to
func (s *PostgresService) ListOrganizations(ctx context.Context, userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.is_active, o.settings, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members om ON o.id = om.organization_id
		WHERE om.user_id = $1 AND o.is_active = true
		ORDER BY om.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var list []*Organization
	for rows.Next() {
		org := &Organization{}
		var settingsJSON []byte
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Slug, &org.IsActive, &settingsJSON,
			&org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if len(settingsJSON) > 0 {
			if err := json.Unmarshal(settingsJSON, &org.Settings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
			}
		}
		list = append(list, org)
	}

	return list, rows.Err()
}

// UpdateOrganization updates an organization
func (s *PostgresService) UpdateOrganization(ctx context.Context, id int64, updates *UpdateOrgRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Settings != nil {
		settingsJSON, err := json.Marshal(updates.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("settings = $%d", argPos))
		args = append(args, settingsJSON)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}

// DeactivateOrganization soft-disables an organization. Organizations are
// never physically merged or removed.
func (s *PostgresService) DeactivateOrganization(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}

// scanOrganization scans an organization from a single row
func (s *PostgresService) scanOrganization(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	var settingsJSON []byte
	err := row.Scan(
		&org.ID, &org.Name, &org.Slug, &org.IsActive, &settingsJSON,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &org.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return org, nil
}

// generateSlug converts a name to a URL-safe slug
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}

// generateToken generates a random invitation token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
