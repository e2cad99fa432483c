package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/scope"
)

func TestCreateTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("creates when project is in scope", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT organization_id FROM projects").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO tasks").
			WithArgs(int64(1), int64(3), "Ship it", "", StatusTodo, 0, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(8, now, now))
		mock.ExpectCommit()

		task := &Task{ProjectID: 3, Title: "Ship it"}
		require.NoError(t, store.CreateTask(context.Background(), scope.ForTenant(1), task))
		assert.Equal(t, int64(8), task.ID)
		assert.Equal(t, StatusTodo, task.Status)
	})

	t.Run("rejects a project owned by another organization", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT organization_id FROM projects").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow(2))
		mock.ExpectRollback()

		task := &Task{ProjectID: 3, Title: "Ship it"}
		err := store.CreateTask(context.Background(), scope.ForTenant(1), task)
		assert.EqualError(t, err, "project not found")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTask_LoadsAssignees(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id = \\$1 AND organization_id = \\$2").
		WithArgs(int64(8), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "project_id", "title", "description", "status",
			"priority", "due_date", "created_by", "created_at", "updated_at",
		}).AddRow(8, 1, 3, "Ship it", nil, StatusInProgress, 2, nil, nil, now, now))
	mock.ExpectQuery("SELECT user_id FROM task_assignees").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7).AddRow(9))

	task, err := store.GetTask(context.Background(), scope.ForTenant(1), 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, task.AssigneeIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	t.Run("assigns organization members", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO task_assignees").
			WithArgs(int64(8), int64(7), nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.AssignUser(context.Background(), 8, 7, nil))
	})

	t.Run("rejects non-members", func(t *testing.T) {
		// The membership join matches no rows, so nothing is inserted.
		mock.ExpectExec("INSERT INTO task_assignees").
			WithArgs(int64(8), int64(55), nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.Error(t, store.AssignUser(context.Background(), 8, 55, nil))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTasks_ProjectFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()
	projectID := int64(3)

	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE project_id = \\$1 AND organization_id = \\$2").
		WithArgs(projectID, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "project_id", "title", "description", "status",
			"priority", "due_date", "created_by", "created_at", "updated_at",
		}).AddRow(8, 1, 3, "Ship it", nil, StatusTodo, 0, nil, nil, now, now))

	list, err := store.ListTasks(context.Background(), scope.ForTenant(1), &projectID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
