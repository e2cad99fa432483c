package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateInvitation creates a new invitation. Re-inviting the same email
// refreshes the token and expiry.
func (s *PostgresService) CreateInvitation(ctx context.Context, invitation *Invitation) error {
	if invitation.RoleID != nil {
		if err := s.roleUsableInOrg(ctx, invitation.OrgID, *invitation.RoleID); err != nil {
			return err
		}
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	invitation.Token = token

	if invitation.InvitedAt.IsZero() {
		invitation.InvitedAt = time.Now()
	}
	if invitation.ExpiresAt.IsZero() {
		invitation.ExpiresAt = time.Now().Add(7 * 24 * time.Hour) // 7 days
	}

	query := `
		INSERT INTO org_invitations (org_id, email, role_id, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, email) DO UPDATE
		SET token = EXCLUDED.token, invited_at = EXCLUDED.invited_at, expires_at = EXCLUDED.expires_at
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query, invitation.OrgID, invitation.Email, invitation.RoleID,
		invitation.Token, invitation.InvitedBy, invitation.InvitedAt, invitation.ExpiresAt).
		Scan(&invitation.ID)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetInvitation retrieves an invitation by token
func (s *PostgresService) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, org_id, email, role_id, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM org_invitations
		WHERE token = $1
	`
	invitation := &Invitation{}
	var roleID, acceptedBy sql.NullInt64
	var acceptedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&invitation.ID, &invitation.OrgID, &invitation.Email, &roleID,
		&invitation.Token, &invitation.InvitedBy, &invitation.InvitedAt, &invitation.ExpiresAt,
		&acceptedAt, &acceptedBy,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if roleID.Valid {
		id := roleID.Int64
		invitation.RoleID = &id
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		invitation.AcceptedAt = &t
	}
	if acceptedBy.Valid {
		id := acceptedBy.Int64
		invitation.AcceptedBy = &id
	}

	return invitation, nil
}

// AcceptInvitation accepts an invitation and adds the user to the organization
func (s *PostgresService) AcceptInvitation(ctx context.Context, token string, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, org_id, role_id, expires_at, accepted_at
		FROM org_invitations
		WHERE token = $1
		FOR UPDATE
	`
	var id, orgID int64
	var roleID sql.NullInt64
	var expiresAt time.Time
	var acceptedAt sql.NullTime

	err = tx.QueryRowContext(ctx, query, token).Scan(&id, &orgID, &roleID, &expiresAt, &acceptedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("invitation not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	if acceptedAt.Valid {
		return fmt.Errorf("invitation already accepted")
	}
	if time.Now().After(expiresAt) {
		return fmt.Errorf("invitation expired")
	}

	var memberRoleID *int64
	if roleID.Valid {
		memberRoleID = &roleID.Int64
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role_id, joined_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, orgID, userID, memberRoleID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE org_invitations SET accepted_at = NOW(), accepted_by = $1 WHERE id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	return tx.Commit()
}

// RevokeInvitation revokes a pending invitation
func (s *PostgresService) RevokeInvitation(ctx context.Context, id int64) error {
	query := `DELETE FROM org_invitations WHERE id = $1 AND accepted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invitation not found or already accepted")
	}

	return nil
}

// CleanupExpiredInvitations removes expired invitations
func (s *PostgresService) CleanupExpiredInvitations(ctx context.Context) error {
	query := `DELETE FROM org_invitations WHERE expires_at < NOW() AND accepted_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return nil
}
