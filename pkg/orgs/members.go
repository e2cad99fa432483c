package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// ListMembers retrieves all members of an organization
func (s *PostgresService) ListMembers(ctx context.Context, orgID int64) ([]*Member, error) {
	query := `
		SELECT om.id, om.organization_id, om.user_id, om.role_id, om.invited_by, om.joined_at,
		       u.name, u.email
		FROM organization_members om
		JOIN users u ON u.id = om.user_id
		WHERE om.organization_id = $1
		ORDER BY om.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// GetMember retrieves a specific member
func (s *PostgresService) GetMember(ctx context.Context, orgID, userID int64) (*Member, error) {
	query := `
		SELECT om.id, om.organization_id, om.user_id, om.role_id, om.invited_by, om.joined_at,
		       u.name, u.email
		FROM organization_members om
		JOIN users u ON u.id = om.user_id
		WHERE om.organization_id = $1 AND om.user_id = $2
	`
	member, err := scanMember(s.db.QueryRowContext(ctx, query, orgID, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotAMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// IsMember reports whether the user belongs to an active organization
func (s *PostgresService) IsMember(ctx context.Context, orgID, userID int64) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM organization_members om
		JOIN organizations o ON o.id = om.organization_id
		WHERE om.organization_id = $1 AND om.user_id = $2 AND o.is_active = true
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// FirstOrganizationID returns the ID of the first active organization the user
// joined, used as the resolution fallback when no default is set.
func (s *PostgresService) FirstOrganizationID(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT om.organization_id
		FROM organization_members om
		JOIN organizations o ON o.id = om.organization_id
		WHERE om.user_id = $1 AND o.is_active = true
		ORDER BY om.joined_at ASC
		LIMIT 1
	`
	var orgID int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&orgID)
	if err == sql.ErrNoRows {
		return 0, ErrNotAMember
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get first organization: %w", err)
	}
	return orgID, nil
}

// roleUsableInOrg verifies a role is local to the organization or global
func (s *PostgresService) roleUsableInOrg(ctx context.Context, orgID, roleID int64) error {
	query := `
		SELECT COUNT(1)
		FROM roles
		WHERE id = $1 AND (organization_id = $2 OR organization_id IS NULL)
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, roleID, orgID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check role organization: %w", err)
	}
	if count == 0 {
		return ErrForeignRole
	}
	return nil
}

// AddMember adds a user to an organization with an optional role
func (s *PostgresService) AddMember(ctx context.Context, orgID, userID int64, roleID *int64, invitedBy *int64) error {
	if roleID != nil {
		if err := s.roleUsableInOrg(ctx, orgID, *roleID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO organization_members (organization_id, user_id, role_id, invited_by, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, orgID, userID, roleID, invitedBy)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
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

// UpdateMemberRole updates a member's role within the organization
func (s *PostgresService) UpdateMemberRole(ctx context.Context, orgID, userID int64, roleID *int64) error {
	if roleID != nil {
		if err := s.roleUsableInOrg(ctx, orgID, *roleID); err != nil {
			return err
		}
	}

	query := `UPDATE organization_members SET role_id = $1 WHERE organization_id = $2 AND user_id = $3`
	result, err := s.db.ExecContext(ctx, query, roleID, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotAMember
	}

	return nil
}

// RemoveMember removes a user from an organization
func (s *PostgresService) RemoveMember(ctx context.Context, orgID, userID int64) error {
	query := `DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotAMember
	}

	return nil
}

// scanMember scans a member from a database row
func scanMember(scanner interface {
	Scan(dest ...interface{}) error
}) (*Member, error) {
	member := &Member{}
	var roleID, invitedBy sql.NullInt64
	var email sql.NullString

	err := scanner.Scan(
		&member.ID, &member.OrganizationID, &member.UserID, &roleID, &invitedBy,
		&member.JoinedAt, &member.Name, &email,
	)
	if err != nil {
		return nil, err
	}

	if roleID.Valid {
		id := roleID.Int64
		member.RoleID = &id
	}
	if invitedBy.Valid {
		id := invitedBy.Int64
		member.InvitedBy = &id
	}
	if email.Valid {
		member.Email = email.String
	}

	return member, nil
}
