package projects

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/scope"
)

func TestCreateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	// The organization comes from the scope, not the payload.
	project := &Project{Name: "Launch", OrganizationID: 999}

	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(int64(1), "Launch", "", "active", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, now, now))

	require.NoError(t, store.CreateProject(context.Background(), scope.ForTenant(1), project))
	assert.Equal(t, int64(1), project.OrganizationID)
	assert.Equal(t, int64(5), project.ID)
	assert.Equal(t, "active", project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProject_BypassScopeRejected(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	err = store.CreateProject(context.Background(), scope.WithoutScope(), &Project{Name: "Launch"})
	assert.ErrorIs(t, err, scope.ErrTenantNotSet)
}

func TestGetProject_ScopedToOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("found in scope", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "organization_id", "name", "description", "status", "due_date", "created_by", "created_at", "updated_at",
		}).AddRow(5, 1, "Launch", nil, "active", nil, nil, now, now)

		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id = \\$1 AND organization_id = \\$2").
			WithArgs(int64(5), int64(1)).
			WillReturnRows(rows)

		project, err := store.GetProject(context.Background(), scope.ForTenant(1), 5)
		require.NoError(t, err)
		assert.Equal(t, "Launch", project.Name)
	})

	t.Run("same id under another tenant is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id = \\$1 AND organization_id = \\$2").
			WithArgs(int64(5), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "organization_id", "name", "description", "status", "due_date", "created_by", "created_at", "updated_at",
			}))

		_, err := store.GetProject(context.Background(), scope.ForTenant(2), 5)
		assert.EqualError(t, err, "project not found")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjects_BypassScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "organization_id", "name", "description", "status", "due_date", "created_by", "created_at", "updated_at",
	}).
		AddRow(1, 1, "A", nil, "active", nil, nil, now, now).
		AddRow(2, 2, "B", nil, "active", nil, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM projects WHERE 1 = 1").WillReturnRows(rows)

	list, err := store.ListProjects(context.Background(), scope.WithoutScope())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	name := "Renamed"

	t.Run("updates within scope", func(t *testing.T) {
		mock.ExpectExec("UPDATE projects SET name = \\$1, updated_at = NOW\\(\\) WHERE id = \\$2 AND organization_id = \\$3").
			WithArgs("Renamed", int64(5), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateProject(context.Background(), scope.ForTenant(1), 5, &UpdateProjectRequest{Name: &name})
		assert.NoError(t, err)
	})

	t.Run("wrong tenant updates nothing", func(t *testing.T) {
		mock.ExpectExec("UPDATE projects SET name = \\$1, updated_at = NOW\\(\\) WHERE id = \\$2 AND organization_id = \\$3").
			WithArgs("Renamed", int64(5), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateProject(context.Background(), scope.ForTenant(2), 5, &UpdateProjectRequest{Name: &name})
		assert.EqualError(t, err, "project not found")
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		err := store.UpdateProject(context.Background(), scope.ForTenant(1), 5, &UpdateProjectRequest{})
		assert.NoError(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMember_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("INSERT INTO project_members").
		WithArgs(int64(5), int64(7), MemberRoleMember, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.AddMember(context.Background(), 5, 7, "", nil)
	assert.EqualError(t, err, "member already exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(5), int64(7), MemberRoleOwner).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	owner, err := store.IsOwner(context.Background(), 5, 7)
	require.NoError(t, err)
	assert.True(t, owner)
	assert.NoError(t, mock.ExpectationsWereMet())
}
