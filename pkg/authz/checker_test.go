package authz

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checker := NewPermissionChecker(db, 100, time.Minute)

	t.Run("granted", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs(int64(1), int64(42), "projects.create").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		granted, err := checker.HasPermission(context.Background(), 42, 1, "projects.create")
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("second check is memoized", func(t *testing.T) {
		// No query expectation: a repeat hit must come from the cache.
		granted, err := checker.HasPermission(context.Background(), 42, 1, "projects.create")
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("denied", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs(int64(1), int64(42), "projects.delete").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		granted, err := checker.HasPermission(context.Background(), 42, 1, "projects.delete")
		require.NoError(t, err)
		assert.False(t, granted)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasPermission_RoleLocality(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checker := NewPermissionChecker(db, 100, time.Minute)

	// The join must count only roles local to the org or global ones; a
	// membership row pointing at another org's role grants nothing.
	mock.ExpectQuery(`JOIN roles r ON r\.id = om\.role_id\s+AND \(r\.organization_id = om\.organization_id OR r\.organization_id IS NULL\)`).
		WithArgs(int64(5), int64(42), "organizations.update").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	granted, err := checker.HasPermission(context.Background(), 42, 5, "organizations.update")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checker := NewPermissionChecker(db, 100, time.Minute)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), int64(42), "tasks.view").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), int64(99), "tasks.view").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err = checker.HasPermission(context.Background(), 42, 1, "tasks.view")
	require.NoError(t, err)
	_, err = checker.HasPermission(context.Background(), 99, 1, "tasks.view")
	require.NoError(t, err)

	checker.InvalidateUser(42)

	// User 42 re-queries; user 99's entry survived.
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), int64(42), "tasks.view").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	granted, err := checker.HasPermission(context.Background(), 42, 1, "tasks.view")
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = checker.HasPermission(context.Background(), 99, 1, "tasks.view")
	require.NoError(t, err)
	assert.True(t, granted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checker := NewPermissionChecker(db, 100, time.Minute)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), int64(42), "roles.update").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err = checker.HasPermission(context.Background(), 42, 1, "roles.update")
	require.NoError(t, err)

	checker.InvalidateAll()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), int64(42), "roles.update").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	granted, err := checker.HasPermission(context.Background(), 42, 1, "roles.update")
	require.NoError(t, err)
	assert.False(t, granted)

	assert.NoError(t, mock.ExpectationsWereMet())
}
