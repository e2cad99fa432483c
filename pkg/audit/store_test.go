package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/scope"
)

func TestRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("records with request id from context", func(t *testing.T) {
		ctx := contextkeys.WithRequestID(context.Background(), "req-1")

		mock.ExpectQuery("INSERT INTO audit_log").
			WithArgs(int64(1), int64(42), ActionTenantSwitch, "organization", int64(5), "req-1", []byte(`{}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))

		entry := &Entry{OrganizationID: 1, ActorID: 42, Action: ActionTenantSwitch, TargetType: "organization", TargetID: 5}
		require.NoError(t, store.Record(ctx, entry))
		assert.Equal(t, int64(3), entry.ID)
		assert.Equal(t, "req-1", entry.RequestID)
	})

	t.Run("detail is serialized", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO audit_log").
			WithArgs(int64(1), int64(42), ActionPermissionsSet, "role", int64(7), "", []byte(`{"permissions":3}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, now))

		entry := &Entry{
			OrganizationID: 1, ActorID: 42, Action: ActionPermissionsSet,
			TargetType: "role", TargetID: 7,
			Detail: map[string]interface{}{"permissions": 3},
		}
		require.NoError(t, store.Record(context.Background(), entry))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_ScopedToOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE organization_id = \\$1").
		WithArgs(int64(1), 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "actor_id", "action", "target_type", "target_id", "request_id", "detail", "created_at",
		}).AddRow(3, 1, 42, ActionTenantSwitch, "organization", 5, "req-1", []byte(`{}`), now))

	entries, err := store.List(context.Background(), scope.ForTenant(1), 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionTenantSwitch, entries[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("DELETE FROM audit_log WHERE created_at <").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 12))

	removed, err := store.Cleanup(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
