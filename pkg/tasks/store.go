package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/crewdeck/pkg/scope"
)

// Store persists tasks and assignments in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a task store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const taskColumns = `id, organization_id, project_id, title, description, status, priority, due_date, created_by, created_at, updated_at`

// CreateTask creates a task in the scoped organization. The task's parent
// project must belong to the same organization.
func (s *Store) CreateTask(ctx context.Context, sc scope.Scope, task *Task) error {
	orgID, err := sc.RequireOrgID()
	if err != nil {
		return err
	}
	task.OrganizationID = orgID

	if task.Status == "" {
		task.Status = StatusTodo
	}

	// The project check and the insert share a transaction so a concurrent
	// project delete cannot strand the task in another organization.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var projectOrgID int64
	err = tx.QueryRowContext(ctx,
		`SELECT organization_id FROM projects WHERE id = $1 FOR SHARE`, task.ProjectID).
		Scan(&projectOrgID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("project not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if projectOrgID != orgID {
		return fmt.Errorf("project not found")
	}

	query := `
		INSERT INTO tasks (organization_id, project_id, title, description, status, priority, due_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		task.OrganizationID, task.ProjectID, task.Title, task.Description,
		task.Status, task.Priority, task.DueDate, task.CreatedBy).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return tx.Commit()
}

// GetTask retrieves a task by ID within the scope, with its assignees
func (s *Store) GetTask(ctx context.Context, sc scope.Scope, id int64) (*Task, error) {
	where, scopeArgs := sc.Where("organization_id", 2)
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 AND %s`, taskColumns, where)
	args := append([]interface{}{id}, scopeArgs...)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	assignees, err := s.getAssignees(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	task.AssigneeIDs = assignees

	return task, nil
}

// ListTasks lists tasks within the scope, optionally filtered by project
func (s *Store) ListTasks(ctx context.Context, sc scope.Scope, projectID *int64) ([]*Task, error) {
	conditions := []string{}
	args := []interface{}{}
	argNum := 1

	if projectID != nil {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argNum))
		args = append(args, *projectID)
		argNum++
	}

	where, scopeArgs := sc.Where("organization_id", argNum)
	conditions = append(conditions, where)
	args = append(args, scopeArgs...)

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY priority DESC, created_at DESC`,
		taskColumns, strings.Join(conditions, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTask applies a partial update to a task within the scope
func (s *Store) UpdateTask(ctx context.Context, sc scope.Scope, id int64, update *UpdateTaskRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argNum := 1

	if update.Title != nil {
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", argNum))
		args = append(args, *update.Title)
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
	if update.Priority != nil {
		setClauses = append(setClauses, fmt.Sprintf("priority = $%d", argNum))
		args = append(args, *update.Priority)
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

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND %s`,
		strings.Join(setClauses, ", "), idPos, where)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found")
	}

	return nil
}

// DeleteTask deletes a task within the scope
func (s *Store) DeleteTask(ctx context.Context, sc scope.Scope, id int64) error {
	where, scopeArgs := sc.Where("organization_id", 2)
	query := fmt.Sprintf(`DELETE FROM tasks WHERE id = $1 AND %s`, where)
	args := append([]interface{}{id}, scopeArgs...)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found")
	}

	return nil
}

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	task := &Task{}
	var description sql.NullString
	var dueDate sql.NullTime
	var createdBy sql.NullInt64

	err := row.Scan(&task.ID, &task.OrganizationID, &task.ProjectID, &task.Title,
		&description, &task.Status, &task.Priority, &dueDate, &createdBy,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = description.String
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if createdBy.Valid {
		id := createdBy.Int64
		task.CreatedBy = &id
	}

	return task, nil
}
