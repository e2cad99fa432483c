package projects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/crewdeck/pkg/scope"
)

// Store persists projects and project memberships in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a project store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const projectColumns = `id, organization_id, name, description, status, due_date, created_by, created_at, updated_at`

// CreateProject creates a project in the scoped organization. The organization
// ID is taken from the scope, never from the caller's payload.
func (s *Store) CreateProject(ctx context.Context, sc scope.Scope, project *Project) error {
	orgID, err := sc.RequireOrgID()
	if err != nil {
		return err
	}
	project.OrganizationID = orgID

	if project.Status == "" {
		project.Status = "active"
	}

	query := `
		INSERT INTO projects (organization_id, name, description, status, due_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		project.OrganizationID, project.Name, project.Description,
		project.Status, project.DueDate, project.CreatedBy).
		Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID within the scope
func (s *Store) GetProject(ctx context.Context, sc scope.Scope, id int64) (*Project, error) {
	where, scopeArgs := sc.Where("organization_id", 2)
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1 AND %s`, projectColumns, where)
	args := append([]interface{}{id}, scopeArgs...)

	project, err := scanProject(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// ListProjects lists projects within the scope, newest first
func (s *Store) ListProjects(ctx context.Context, sc scope.Scope) ([]*Project, error) {
	where, scopeArgs := sc.Where("organization_id", 1)
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s ORDER BY created_at DESC`, projectColumns, where)

	rows, err := s.db.QueryContext(ctx, query, scopeArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// UpdateProject applies a partial update to a project within the scope
func (s *Store) UpdateProject(ctx context.Context, sc scope.Scope, id int64, update *UpdateProjectRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argNum := 1

	if update.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argNum))
		args = append(args, *update.Name)
		argNum++
	}
	if update.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argNum))
		args = append(args, *update.Description)
		argNum++
	}
	if update.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *update.Status)
		argNum++
	}
	if update.DueDate != nil {
		setClauses = append(setClauses, fmt.Sprintf("due_date = $%d", argNum))
		args = append(args, *update.DueDate)
		argNum++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	idPos := argNum
	argNum++

	where, scopeArgs := sc.Where("organization_id", argNum)
	args = append(args, scopeArgs...)

	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d AND %s`,
		strings.Join(setClauses, ", "), idPos, where)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found")
	}

	return nil
}

// DeleteProject deletes a project within the scope. Memberships, tasks and
// allocations cascade at the schema level.
func (s *Store) DeleteProject(ctx context.Context, sc scope.Scope, id int64) error {
	where, scopeArgs := sc.Where("organization_id", 2)
	query := fmt.Sprintf(`DELETE FROM projects WHERE id = $1 AND %s`, where)
	args := append([]interface{}{id}, scopeArgs...)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found")
	}

	return nil
}

// UpdateProjectRequest represents a partial project update
type UpdateProjectRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	project := &Project{}
	var description sql.NullString
	var dueDate sql.NullTime
	var createdBy sql.NullInt64

	err := row.Scan(&project.ID, &project.OrganizationID, &project.Name, &description,
		&project.Status, &dueDate, &createdBy, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		project.Description = description.String
	}
	if dueDate.Valid {
		t := dueDate.Time
		project.DueDate = &t
	}
	if createdBy.Valid {
		id := createdBy.Int64
		project.CreatedBy = &id
	}

	return project, nil
}
