package orgs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("Acme Corp", "acme-corp").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("owner", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO role_permissions").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 30))
	mock.ExpectExec("INSERT INTO organization_members").
		WithArgs(int64(1), int64(42), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET current_organization_id").
		WithArgs(int64(1), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Register(context.Background(), RegisterRequest{
		OrganizationName: "Acme Corp",
		UserID:           42,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Organization.ID)
	assert.Equal(t, "acme-corp", result.Organization.Slug)
	assert.Equal(t, int64(7), result.OwnerRoleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)
	now := time.Now()

	// Owner role creation fails; nothing outside the transaction survives.
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("Acme Corp", "acme-corp").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("owner", int64(1)).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err = svc.Register(context.Background(), RegisterRequest{
		OrganizationName: "Acme Corp",
		UserID:           42,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)

	t.Run("member", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs(int64(1), int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		ok, err := svc.IsMember(context.Background(), 1, 42)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-member", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs(int64(2), int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		ok, err := svc.IsMember(context.Background(), 2, 42)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "acme-corp", generateSlug("Acme Corp"))
	assert.Equal(t, "my-team-2", generateSlug("My Team 2"))
	assert.Equal(t, "rd-group", generateSlug("R&D Group"))
}
