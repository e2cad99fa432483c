package allocations

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/storage/postgres"
)

// TestCheckCapacityStatement runs the locking aggregate against a real server
// to catch statement-level errors sqlmock cannot see. Skips unless
// TEST_POSTGRES_PRIMARY is set.
func TestCheckCapacityStatement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	dsn := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dsn == "" {
		t.Skip("skipping test: TEST_POSTGRES_PRIMARY environment variable not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	ctx := context.Background()
	require.NoError(t, postgres.RunMigrations(ctx, db))

	store := NewStore(db)
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	alloc := &Allocation{
		OrganizationID: 1,
		UserID:         7,
		Percent:        50,
		StartDate:      date("2026-01-01"),
		EndDate:        date("2026-01-31"),
	}
	require.NoError(t, store.checkCapacity(ctx, tx, alloc, 0))
}
