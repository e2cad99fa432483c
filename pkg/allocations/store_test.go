package allocations

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/scope"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestCreateAllocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	alloc := &Allocation{
		UserID:    7,
		ProjectID: 3,
		Percent:   50,
		StartDate: date("2026-01-01"),
		EndDate:   date("2026-03-31"),
	}

	// The row lock lives in the subquery; the sum wraps it.
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT COALESCE\(SUM\(percent\), 0\) FROM \(\s+SELECT percent.+FOR UPDATE\s+\) overlapping`).
		WithArgs(int64(1), int64(7), alloc.EndDate, alloc.StartDate, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(30))
	mock.ExpectQuery("INSERT INTO resource_allocations").
		WithArgs(int64(1), int64(7), int64(3), 50, alloc.StartDate, alloc.EndDate, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))
	mock.ExpectCommit()

	require.NoError(t, store.CreateAllocation(context.Background(), scope.ForTenant(1), alloc))
	assert.Equal(t, int64(9), alloc.ID)
	assert.Equal(t, int64(1), alloc.OrganizationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAllocation_CapacityExceeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	// 60% committed for January, requesting another 50% for Jan 15-20.
	alloc := &Allocation{
		UserID:    7,
		ProjectID: 3,
		Percent:   50,
		StartDate: date("2026-01-15"),
		EndDate:   date("2026-01-20"),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(percent\\), 0\\)").
		WithArgs(int64(1), int64(7), alloc.EndDate, alloc.StartDate, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(60))
	mock.ExpectRollback()

	err = store.CreateAllocation(context.Background(), scope.ForTenant(1), alloc)
	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))

	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(7), capErr.UserID)
	assert.Equal(t, 50, capErr.Requested)
	assert.Equal(t, 60, capErr.Committed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAllocation_RequiresTenant(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	alloc := &Allocation{UserID: 7, ProjectID: 3, Percent: 10,
		StartDate: date("2026-01-01"), EndDate: date("2026-01-31")}

	err = store.CreateAllocation(context.Background(), scope.WithoutScope(), alloc)
	assert.ErrorIs(t, err, scope.ErrTenantNotSet)
}

func TestUpdateAllocation_ExcludesOwnRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	alloc := &Allocation{
		UserID:    7,
		Percent:   80,
		StartDate: date("2026-02-01"),
		EndDate:   date("2026-02-28"),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(percent\\), 0\\)").
		WithArgs(int64(1), int64(7), alloc.EndDate, alloc.StartDate, int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(20))
	mock.ExpectExec("UPDATE resource_allocations").
		WithArgs(80, alloc.StartDate, alloc.EndDate, int64(9), int64(1), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpdateAllocation(context.Background(), scope.ForTenant(1), 9, alloc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationValidate(t *testing.T) {
	base := Allocation{UserID: 7, ProjectID: 3,
		StartDate: date("2026-01-01"), EndDate: date("2026-01-31")}

	t.Run("percent bounds", func(t *testing.T) {
		for _, percent := range []int{0, -5, 101} {
			a := base
			a.Percent = percent
			assert.Error(t, a.Validate())
		}
		a := base
		a.Percent = 100
		assert.NoError(t, a.Validate())
	})

	t.Run("inverted range", func(t *testing.T) {
		a := base
		a.Percent = 10
		a.StartDate, a.EndDate = a.EndDate, a.StartDate
		assert.Error(t, a.Validate())
	})

	t.Run("single day range", func(t *testing.T) {
		a := base
		a.Percent = 10
		a.EndDate = a.StartDate
		assert.NoError(t, a.Validate())
	})
}
