package orgs

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)
	invitedBy := int64(5)

	t.Run("local role", func(t *testing.T) {
		roleID := int64(7)
		mock.ExpectQuery("FROM roles").
			WithArgs(roleID, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec("INSERT INTO organization_members").
			WithArgs(int64(1), int64(42), roleID, invitedBy).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.AddMember(context.Background(), 1, 42, &roleID, &invitedBy)
		require.NoError(t, err)
	})

	t.Run("foreign role rejected", func(t *testing.T) {
		// Role 9 belongs to another org; the membership insert never runs.
		roleID := int64(9)
		mock.ExpectQuery("FROM roles").
			WithArgs(roleID, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		err := svc.AddMember(context.Background(), 1, 42, &roleID, &invitedBy)
		assert.ErrorIs(t, err, ErrForeignRole)
	})

	t.Run("no role skips the check", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO organization_members").
			WithArgs(int64(1), int64(43), nil, invitedBy).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.AddMember(context.Background(), 1, 43, nil, &invitedBy)
		require.NoError(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)

	t.Run("global role accepted", func(t *testing.T) {
		roleID := int64(3)
		mock.ExpectQuery("FROM roles").
			WithArgs(roleID, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec("UPDATE organization_members SET role_id").
			WithArgs(roleID, int64(1), int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.UpdateMemberRole(context.Background(), 1, 42, &roleID)
		require.NoError(t, err)
	})

	t.Run("foreign role rejected", func(t *testing.T) {
		roleID := int64(9)
		mock.ExpectQuery("FROM roles").
			WithArgs(roleID, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		err := svc.UpdateMemberRole(context.Background(), 1, 42, &roleID)
		assert.ErrorIs(t, err, ErrForeignRole)
	})

	t.Run("not a member", func(t *testing.T) {
		roleID := int64(3)
		mock.ExpectQuery("FROM roles").
			WithArgs(roleID, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec("UPDATE organization_members SET role_id").
			WithArgs(roleID, int64(1), int64(77)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.UpdateMemberRole(context.Background(), 1, 77, &roleID)
		assert.ErrorIs(t, err, ErrNotAMember)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvitation_ForeignRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)

	roleID := int64(9)
	mock.ExpectQuery("FROM roles").
		WithArgs(roleID, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err = svc.CreateInvitation(context.Background(), &Invitation{
		OrgID:     1,
		Email:     "new@example.com",
		RoleID:    &roleID,
		InvitedBy: 5,
	})
	assert.ErrorIs(t, err, ErrForeignRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}
