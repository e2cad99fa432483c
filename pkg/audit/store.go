package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/scope"
)

// Store persists audit entries in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends an entry. The request ID is taken from the context when the
// entry carries none. Failures here must not fail the audited operation;
// callers log and continue.
func (s *Store) Record(ctx context.Context, entry *Entry) error {
	if entry.RequestID == "" {
		entry.RequestID = contextkeys.GetRequestID(ctx)
	}

	detail := []byte("{}")
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (organization_id, actor_id, action, target_type, target_id, request_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		entry.OrganizationID, entry.ActorID, entry.Action,
		entry.TargetType, entry.TargetID, entry.RequestID, detail,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

// List returns entries for the scoped organization, newest first
func (s *Store) List(ctx context.Context, sc scope.Scope, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	where, scopeArgs := sc.Where("organization_id", 1)
	query := fmt.Sprintf(`
		SELECT id, organization_id, actor_id, action, target_type, target_id, request_id, detail, created_at
		FROM audit_log
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, where, len(scopeArgs)+1)
	args := append(scopeArgs, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var detail []byte
		err := rows.Scan(&e.ID, &e.OrganizationID, &e.ActorID, &e.Action,
			&e.TargetType, &e.TargetID, &e.RequestID, &detail, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Cleanup deletes entries older than the retention period and reports how
// many were removed.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit entries: %w", err)
	}

	return result.RowsAffected()
}
