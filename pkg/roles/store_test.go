package roles

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleRow(id int64, name, slug string, isSystem bool, orgID interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "slug", "description", "is_system", "organization_id", "created_at", "updated_at",
	}).AddRow(id, name, slug, "", isSystem, orgID, now, now)
}

func TestCreateRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	orgID := int64(5)
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("Editor", "editor", "Can edit things", false, orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))

	role := &Role{Name: "Editor", Slug: "editor", Description: "Can edit things", OrganizationID: &orgID}
	require.NoError(t, store.CreateRole(context.Background(), role))
	assert.Equal(t, int64(10), role.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRole_SystemRoleRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("SELECT (.+) FROM roles").
		WithArgs(int64(3)).
		WillReturnRows(roleRow(3, "Owner", "owner", true, int64(5)))
	mock.ExpectQuery("SELECT (.+) FROM role_permissions").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "permission_group"}))

	err = store.UpdateRole(context.Background(), &Role{ID: 3, Name: "Renamed"})
	assert.ErrorIs(t, err, ErrSystemRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRole_SystemRoleRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("SELECT (.+) FROM roles").
		WithArgs(int64(3)).
		WillReturnRows(roleRow(3, "Owner", "owner", true, int64(5)))
	mock.ExpectQuery("SELECT (.+) FROM role_permissions").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "permission_group"}))

	err = store.DeleteRole(context.Background(), 3)
	assert.ErrorIs(t, err, ErrSystemRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("SELECT (.+) FROM roles").
		WithArgs(int64(8)).
		WillReturnRows(roleRow(8, "Editor", "editor", false, int64(5)))
	mock.ExpectQuery("SELECT (.+) FROM role_permissions").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "permission_group"}))
	mock.ExpectExec("DELETE FROM roles").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteRole(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPermissions_SetReplace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	// Replacing the set clears first, so repeating the call converges on the
	// same permission set instead of accumulating.
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM role_permissions").
			WithArgs(int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("INSERT INTO role_permissions").
			WithArgs(int64(4), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO role_permissions").
			WithArgs(int64(4), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.AssignPermissions(context.Background(), 4, []int64{1, 2}))
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOwnerRole_GrantsFullCatalog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs(OwnerRoleSlug, int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec("INSERT INTO role_permissions \\(role_id, permission_id\\) SELECT").
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 30))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	roleID, err := CreateOwnerRole(context.Background(), tx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), roleID)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleIsGlobal(t *testing.T) {
	orgID := int64(5)
	assert.True(t, (&Role{}).IsGlobal())
	assert.False(t, (&Role{OrganizationID: &orgID}).IsGlobal())
}
