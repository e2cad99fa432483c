package projects

import (
	"context"
	"database/sql"
	"fmt"
)

// ListMembers returns the members of a project
func (s *Store) ListMembers(ctx context.Context, projectID int64) ([]*ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, role, added_at, added_by
		FROM project_members
		WHERE project_id = $1
		ORDER BY added_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	var members []*ProjectMember
	for rows.Next() {
		member := &ProjectMember{}
		var addedBy sql.NullInt64
		err := rows.Scan(&member.ID, &member.ProjectID, &member.UserID,
			&member.Role, &member.AddedAt, &addedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		if addedBy.Valid {
			id := addedBy.Int64
			member.AddedBy = &id
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// AddMember adds a user to a project
func (s *Store) AddMember(ctx context.Context, projectID, userID int64, role string, addedBy *int64) error {
	if role == "" {
		role = MemberRoleMember
	}

	query := `
		INSERT INTO project_members (project_id, user_id, role, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, projectID, userID, role, addedBy)
	if err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member already exists")
	}

	return nil
}

// RemoveMember removes a user from a project
func (s *Store) RemoveMember(ctx context.Context, projectID, userID int64) error {
	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member not found")
	}

	return nil
}

// IsMember checks whether a user belongs to a project
func (s *Store) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND user_id = $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check project membership: %w", err)
	}
	return count > 0, nil
}

// IsOwner checks whether a user holds the owner role on a project
func (s *Store) IsOwner(ctx context.Context, projectID, userID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND user_id = $2 AND role = $3`
	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID, userID, MemberRoleOwner).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check project ownership: %w", err)
	}
	return count > 0, nil
}
