package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadready/driveschool-api/internal/models"
)

func TestListAvailableOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "registration_number", "model", "vehicle_class", "available", "created_at", "updated_at"}).
		AddRow("v1", "AAA-111", "Corolla", "class1", true, time.Now(), time.Now()).
		AddRow("v2", "BBB-222", "Yaris", "class2", true, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM vehicles WHERE available = TRUE ORDER BY vehicle_class ASC, registration_number ASC`).
		WillReturnRows(rows)

	vehicles, err := repo.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, models.VehicleClass1, vehicles[0].Class)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusyVehicleIDsWindowPredicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT DISTINCT vehicle_id FROM vehicle_allocations WHERE lesson_date = \$1 AND start_time < \$3 AND end_time > \$2`).
		WithArgs(date, "10:00", "11:00").
		WillReturnRows(sqlmock.NewRows([]string{"vehicle_id"}).AddRow("v1"))

	ids, err := repo.BusyVehicleIDs(context.Background(), date, "10:00", "11:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAllocationMapsConstraintViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	mock.ExpectExec(`INSERT INTO vehicle_allocations`).
		WillReturnError(&pq.Error{Code: "23P01"})

	err := repo.CreateAllocation(context.Background(), &models.VehicleAllocation{
		LessonID:  "l1",
		VehicleID: "v1",
		Date:      time.Now(),
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	assert.ErrorIs(t, err, ErrAllocationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAllocationOtherErrorsUnchanged(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	mock.ExpectExec(`INSERT INTO vehicle_allocations`).
		WillReturnError(errors.New("connection reset"))

	err := repo.CreateAllocation(context.Background(), &models.VehicleAllocation{LessonID: "l1", VehicleID: "v1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAllocationConflict)
}

func TestCreateAllocationAssignsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	mock.ExpectExec(`INSERT INTO vehicle_allocations`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	alloc := &models.VehicleAllocation{LessonID: "l1", VehicleID: "v1"}
	require.NoError(t, repo.CreateAllocation(context.Background(), alloc))
	assert.NotEmpty(t, alloc.ID)
	assert.False(t, alloc.AllocatedAt.IsZero())
}

func TestDeleteAllocationByLesson(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	mock.ExpectExec(`DELETE FROM vehicle_allocations WHERE lesson_id = \$1`).
		WithArgs("l1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteAllocationByLesson(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(`DELETE FROM vehicle_allocations WHERE lesson_id = \$1`).
		WithArgs("none").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.DeleteAllocationByLesson(context.Background(), "none")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCountAllocationsSince(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVehicleRepository(db)

	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM vehicle_allocations WHERE vehicle_id = \$1 AND lesson_date >= \$2`).
		WithArgs("v1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountAllocationsSince(context.Background(), "v1", since)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
