package tasks

import (
	"context"
	"fmt"
)

// AssignUser assigns a user to a task. The user must be a member of the
// organization that owns the task.
func (s *Store) AssignUser(ctx context.Context, taskID, userID int64, assignedBy *int64) error {
	query := `
		INSERT INTO task_assignees (task_id, user_id, assigned_by)
		SELECT t.id, $2, $3
		FROM tasks t
		JOIN organization_members om ON om.organization_id = t.organization_id AND om.user_id = $2
		WHERE t.id = $1
		ON CONFLICT (task_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, taskID, userID, assignedBy)
	if err != nil {
		return fmt.Errorf("failed to assign user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user is not a member of the task's organization or already assigned")
	}

	return nil
}

// UnassignUser removes a user from a task
func (s *Store) UnassignUser(ctx context.Context, taskID, userID int64) error {
	query := `DELETE FROM task_assignees WHERE task_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to unassign user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("assignment not found")
	}

	return nil
}

// IsAssignee checks whether a user is assigned to a task
func (s *Store) IsAssignee(ctx context.Context, taskID, userID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM task_assignees WHERE task_id = $1 AND user_id = $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, taskID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return count > 0, nil
}

func (s *Store) getAssignees(ctx context.Context, taskID int64) ([]int64, error) {
	query := `SELECT user_id FROM task_assignees WHERE task_id = $1 ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignees: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}
