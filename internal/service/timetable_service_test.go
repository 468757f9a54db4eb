package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/pkg/config"
)

type fakeTimetableStore struct {
	created   []*models.Lesson
	taken     map[string]bool
	createErr map[string]error
}

func newFakeTimetableStore() *fakeTimetableStore {
	return &fakeTimetableStore{taken: make(map[string]bool), createErr: make(map[string]error)}
}

func slotKey(userID string, date time.Time) string {
	return fmt.Sprintf("%s@%s", userID, date.Format("2006-01-02"))
}

func (f *fakeTimetableStore) ExistsAtSlot(_ context.Context, _, userID string, date time.Time, _ string) (bool, error) {
	return f.taken[slotKey(userID, date)], nil
}

func (f *fakeTimetableStore) CreateExclusive(_ context.Context, lesson *models.Lesson) error {
	if err, ok := f.createErr[lesson.StudentID]; ok {
		return err
	}
	lesson.ID = fmt.Sprintf("lesson-%d", len(f.created))
	f.created = append(f.created, lesson)
	f.taken[slotKey(lesson.StudentID, lesson.Date)] = true
	f.taken[slotKey(lesson.TutorID, lesson.Date)] = true
	return nil
}

type fakeTimetableRoster struct {
	students []models.User
	tutors   []models.User
}

func (f *fakeTimetableRoster) ListByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	if role == models.RoleStudent {
		return f.students, nil
	}
	return f.tutors, nil
}

func timetableConfig() config.TimetableConfig {
	return config.TimetableConfig{
		HorizonDays: 5,
		SlotStart:   "10:00",
		SlotEnd:     "11:00",
		Location:    "Driving School HQ",
	}
}

func newTimetableFixture(store *fakeTimetableStore, roster *fakeTimetableRoster) *TimetableGenerator {
	gen := NewTimetableGenerator(store, roster, newFakeNotifier(), timetableConfig(), nil)
	gen.pick = func(int) int { return 0 }
	// A Monday, so the horizon spans Tuesday through the following Monday.
	gen.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return gen
}

func TestGenerateBooksEveryStudentEveryWeekday(t *testing.T) {
	store := newFakeTimetableStore()
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1"}, {ID: "s2"}},
		tutors:   []models.User{{ID: "t1"}, {ID: "t2"}},
	}
	gen := newTimetableFixture(store, roster)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, result.Attempted)
	assert.Equal(t, 10, result.Created)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)

	for _, lesson := range store.created {
		assert.Equal(t, "10:00", lesson.StartTime)
		assert.Equal(t, "11:00", lesson.EndTime)
		assert.Equal(t, "Driving School HQ", lesson.Location)

		wd := lesson.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}

	// pick=0 pairs s1 with t1 first each day, leaving t2 for s2.
	assert.Equal(t, "t1", store.created[0].TutorID)
	assert.Equal(t, "t2", store.created[1].TutorID)
}

func TestGeneratePairsWithFreeTutor(t *testing.T) {
	store := newFakeTimetableStore()
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1"}},
		tutors:   []models.User{{ID: "t1"}, {ID: "t2"}},
	}
	gen := newTimetableFixture(store, roster)
	// t1 is booked solid across the horizon; every pairing must land on t2.
	for _, date := range gen.upcomingWeekdays() {
		store.taken[slotKey("t1", date)] = true
	}

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)
	assert.Zero(t, result.Skipped)
	for _, lesson := range store.created {
		assert.Equal(t, "t2", lesson.TutorID)
	}
}

func TestGenerateSkipsWhenNoTutorFree(t *testing.T) {
	store := newFakeTimetableStore()
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1"}},
		tutors:   []models.User{{ID: "t1"}},
	}
	gen := newTimetableFixture(store, roster)
	for _, date := range gen.upcomingWeekdays() {
		store.taken[slotKey("t1", date)] = true
	}

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 5, result.Skipped)
}

func TestGenerateNotifiesBothParties(t *testing.T) {
	store := newFakeTimetableStore()
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1", FullName: "Sam Pupil"}},
		tutors:   []models.User{{ID: "t1", FullName: "Tess Tutor"}},
	}
	gen := newTimetableFixture(store, roster)
	notifier := newFakeNotifier()
	gen.notifier = notifier

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, result.Created)
	require.Len(t, notifier.messages["s1"], 5)
	require.Len(t, notifier.messages["t1"], 5)
	assert.Contains(t, notifier.messages["s1"][0], "Tess Tutor")
	assert.Contains(t, notifier.messages["t1"][0], "Sam Pupil")
	assert.Contains(t, notifier.messages["s1"][0], "10:00")
}

func TestGenerateSkipsOccupiedSlots(t *testing.T) {
	store := newFakeTimetableStore()
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1"}},
		tutors:   []models.User{{ID: "t1"}},
	}
	// s1 already holds the Tuesday slot.
	store.taken[slotKey("s1", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))] = true
	gen := newTimetableFixture(store, roster)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Attempted)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestGenerateCountsStorageConflictsAsSkips(t *testing.T) {
	store := newFakeTimetableStore()
	store.createErr["s1"] = &models.SlotConflictError{Tutor: true}
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1"}, {ID: "s2"}},
		tutors:   []models.User{{ID: "t1"}},
	}
	gen := newTimetableFixture(store, roster)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Skipped)
	assert.Equal(t, 5, result.Created)
}

func TestGenerateIsolatesFailures(t *testing.T) {
	store := newFakeTimetableStore()
	store.createErr["s1"] = errors.New("db down")
	roster := &fakeTimetableRoster{
		students: []models.User{{ID: "s1"}, {ID: "s2"}},
		tutors:   []models.User{{ID: "t1"}},
	}
	gen := newTimetableFixture(store, roster)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Failed)
	assert.Equal(t, 5, result.Created)
}

func TestGenerateEmptyRoster(t *testing.T) {
	store := newFakeTimetableStore()
	gen := newTimetableFixture(store, &fakeTimetableRoster{})

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Empty(t, store.created)
}
