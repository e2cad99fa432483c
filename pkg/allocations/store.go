package allocations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/crewdeck/pkg/scope"
)

// Store persists resource allocations in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates an allocation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const allocationColumns = `id, organization_id, user_id, project_id, percent, start_date, end_date, created_by, created_at, updated_at`

// CreateAllocation creates an allocation in the scoped organization after
// verifying the subject user's capacity. The capacity check and the insert
// share a transaction with the user's existing rows locked, so two concurrent
// allocations cannot both pass the check.
func (s *Store) CreateAllocation(ctx context.Context, sc scope.Scope, alloc *Allocation) error {
	orgID, err := sc.RequireOrgID()
	if err != nil {
		return err
	}
	alloc.OrganizationID = orgID

	if err := alloc.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkCapacity(ctx, tx, alloc, 0); err != nil {
		return err
	}

	query := `
		INSERT INTO resource_allocations (organization_id, user_id, project_id, percent, start_date, end_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		alloc.OrganizationID, alloc.UserID, alloc.ProjectID, alloc.Percent,
		alloc.StartDate, alloc.EndDate, alloc.CreatedBy).
		Scan(&alloc.ID, &alloc.CreatedAt, &alloc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create allocation: %w", err)
	}

	return tx.Commit()
}

// UpdateAllocation replaces an allocation's percent and date range, re-running
// the capacity check with the allocation's own row excluded.
func (s *Store) UpdateAllocation(ctx context.Context, sc scope.Scope, id int64, alloc *Allocation) error {
	orgID, err := sc.RequireOrgID()
	if err != nil {
		return err
	}
	alloc.OrganizationID = orgID

	if err := alloc.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkCapacity(ctx, tx, alloc, id); err != nil {
		return err
	}

	query := `
		UPDATE resource_allocations
		SET percent = $1, start_date = $2, end_date = $3, updated_at = NOW()
		WHERE id = $4 AND organization_id = $5 AND user_id = $6
	`
	result, err := tx.ExecContext(ctx, query,
		alloc.Percent, alloc.StartDate, alloc.EndDate, id, orgID, alloc.UserID)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("allocation not found")
	}

	return tx.Commit()
}

// checkCapacity sums the user's committed percent across allocations that
// overlap the candidate range, locking the rows for the transaction. excludeID
// omits the allocation's own row on updates.
func (s *Store) checkCapacity(ctx context.Context, tx *sql.Tx, alloc *Allocation, excludeID int64) error {
	// Postgres rejects FOR UPDATE on an aggregate, so the overlapping rows
	// are locked in the subquery and summed outside it.
	query := `
		SELECT COALESCE(SUM(percent), 0) FROM (
			SELECT percent
			FROM resource_allocations
			WHERE organization_id = $1 AND user_id = $2
			  AND start_date <= $3 AND end_date >= $4
			  AND id != $5
			FOR UPDATE
		) overlapping
	`
	var committed int
	err := tx.QueryRowContext(ctx, query,
		alloc.OrganizationID, alloc.UserID, alloc.EndDate, alloc.StartDate, excludeID).
		Scan(&committed)
	if err != nil {
		return fmt.Errorf("failed to sum overlapping allocations: %w", err)
	}

	if committed+alloc.Percent > MaxCapacityPercent {
		return &CapacityExceededError{
			UserID:    alloc.UserID,
			Requested: alloc.Percent,
			Committed: committed,
		}
	}

	return nil
}

// GetAllocation retrieves an allocation by ID within the scope
func (s *Store) GetAllocation(ctx context.Context, sc scope.Scope, id int64) (*Allocation, error) {
	where, scopeArgs := sc.Where("organization_id", 2)
	query := fmt.Sprintf(`SELECT %s FROM resource_allocations WHERE id = $1 AND %s`, allocationColumns, where)
	args := append([]interface{}{id}, scopeArgs...)

	alloc, err := scanAllocation(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("allocation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}

	return alloc, nil
}

// ListAllocations lists allocations within the scope, optionally filtered by
// subject user.
func (s *Store) ListAllocations(ctx context.Context, sc scope.Scope, userID *int64) ([]*Allocation, error) {
	args := []interface{}{}
	argNum := 1

	userCond := ""
	if userID != nil {
		userCond = fmt.Sprintf("user_id = $%d AND ", argNum)
		args = append(args, *userID)
		argNum++
	}

	where, scopeArgs := sc.Where("organization_id", argNum)
	args = append(args, scopeArgs...)

	query := fmt.Sprintf(`SELECT %s FROM resource_allocations WHERE %s%s ORDER BY start_date ASC`,
		allocationColumns, userCond, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocs []*Allocation
	for rows.Next() {
		alloc, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocs = append(allocs, alloc)
	}

	return allocs, rows.Err()
}

// DeleteAllocation deletes an allocation within the scope
func (s *Store) DeleteAllocation(ctx context.Context, sc scope.Scope, id int64) error {
	where, scopeArgs := sc.Where("organization_id", 2)
	query := fmt.Sprintf(`DELETE FROM resource_allocations WHERE id = $1 AND %s`, where)
	args := append([]interface{}{id}, scopeArgs...)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("allocation not found")
	}

	return nil
}

// IsSubject reports whether the user is the subject of the allocation
func (s *Store) IsSubject(ctx context.Context, allocationID, userID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM resource_allocations WHERE id = $1 AND user_id = $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, allocationID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check allocation subject: %w", err)
	}
	return count > 0, nil
}

func scanAllocation(row interface{ Scan(...interface{}) error }) (*Allocation, error) {
	alloc := &Allocation{}
	var createdBy sql.NullInt64

	err := row.Scan(&alloc.ID, &alloc.OrganizationID, &alloc.UserID, &alloc.ProjectID,
		&alloc.Percent, &alloc.StartDate, &alloc.EndDate, &createdBy,
		&alloc.CreatedAt, &alloc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if createdBy.Valid {
		id := createdBy.Int64
		alloc.CreatedBy = &id
	}

	return alloc, nil
}
