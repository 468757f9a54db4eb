package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/models"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type fakeLessonStore struct {
	lessons    map[string]*models.Lesson
	createErr  error
	updateErr  error
	intervals  fakeIntervalReader
	lastDelete string
}

func newFakeLessonStore() *fakeLessonStore {
	return &fakeLessonStore{lessons: make(map[string]*models.Lesson)}
}

func (f *fakeLessonStore) TutorIntervals(ctx context.Context, tutorID string, date time.Time) ([]models.ResourceInterval, error) {
	return f.intervals.TutorIntervals(ctx, tutorID, date)
}

func (f *fakeLessonStore) StudentIntervals(ctx context.Context, studentID string, date time.Time) ([]models.ResourceInterval, error) {
	return f.intervals.StudentIntervals(ctx, studentID, date)
}

func (f *fakeLessonStore) FindByID(_ context.Context, id string) (*models.Lesson, error) {
	lesson, ok := f.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *lesson
	return &copied, nil
}

func (f *fakeLessonStore) List(_ context.Context, _ models.LessonFilter) ([]models.Lesson, int, error) {
	var all []models.Lesson
	for _, lesson := range f.lessons {
		all = append(all, *lesson)
	}
	return all, len(all), nil
}

func (f *fakeLessonStore) CreateExclusive(_ context.Context, lesson *models.Lesson) error {
	if f.createErr != nil {
		return f.createErr
	}
	if lesson.ID == "" {
		lesson.ID = "lesson-" + lesson.StudentID
	}
	stored := *lesson
	f.lessons[lesson.ID] = &stored
	return nil
}

func (f *fakeLessonStore) UpdateWindowExclusive(_ context.Context, lesson *models.Lesson) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored := *lesson
	f.lessons[lesson.ID] = &stored
	return nil
}

func (f *fakeLessonStore) Delete(_ context.Context, id string) (bool, error) {
	_, ok := f.lessons[id]
	delete(f.lessons, id)
	f.lastDelete = id
	return ok, nil
}

type fakeRoster struct {
	users map[string]*models.User
}

func (f *fakeRoster) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type fakeAllocator struct {
	alloc       *models.VehicleAllocation
	suggestion  *models.VehicleSuggestion
	allocateErr error
	free        int
	lastLesson  string
}

func (f *fakeAllocator) Suggest(_ context.Context, _ time.Time, _ Window, _ models.VehicleClass) ([]models.VehicleSuggestion, error) {
	if f.suggestion == nil {
		return nil, nil
	}
	return []models.VehicleSuggestion{*f.suggestion}, nil
}

func (f *fakeAllocator) Allocate(_ context.Context, lessonID string, _ time.Time, _ Window, _ models.VehicleClass) (*models.VehicleAllocation, *models.VehicleSuggestion, error) {
	f.lastLesson = lessonID
	if f.allocateErr != nil {
		return nil, nil, f.allocateErr
	}
	return f.alloc, f.suggestion, nil
}

func (f *fakeAllocator) CountFree(_ context.Context, _ time.Time, _ Window) (int, error) {
	return f.free, nil
}

type fakeReleaser struct {
	allocations map[string]*models.VehicleAllocation
	deleted     []string
}

func newFakeReleaser() *fakeReleaser {
	return &fakeReleaser{allocations: make(map[string]*models.VehicleAllocation)}
}

func (f *fakeReleaser) FindAllocationByLesson(_ context.Context, lessonID string) (*models.VehicleAllocation, error) {
	alloc, ok := f.allocations[lessonID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return alloc, nil
}

func (f *fakeReleaser) DeleteAllocationByLesson(_ context.Context, lessonID string) (bool, error) {
	_, ok := f.allocations[lessonID]
	delete(f.allocations, lessonID)
	f.deleted = append(f.deleted, lessonID)
	return ok, nil
}

type fakeNotifier struct {
	messages map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: make(map[string][]string)}
}

func (f *fakeNotifier) Notify(userID, message string) {
	f.messages[userID] = append(f.messages[userID], message)
}

type bookingFixture struct {
	engine   *SchedulingEngine
	lessons  *fakeLessonStore
	releaser *fakeReleaser
	alloc    *fakeAllocator
	notifier *fakeNotifier
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	lessons := newFakeLessonStore()
	releaser := newFakeReleaser()
	notifier := newFakeNotifier()
	alloc := &fakeAllocator{
		alloc:      &models.VehicleAllocation{ID: "alloc-1", VehicleID: "v1"},
		suggestion: &models.VehicleSuggestion{Tier: models.TierPerfect, Confidence: models.ConfidencePerfect},
		free:       3,
	}
	roster := &fakeRoster{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Active: true},
		"tutor-1":   {ID: "tutor-1", Role: models.RoleTutor, Active: true},
		"inactive":  {ID: "inactive", Role: models.RoleStudent, Active: false},
	}}

	engine := NewSchedulingEngine(
		lessons, roster, releaser,
		NewConflictChecker(lessons, nil),
		alloc, notifier, nil, nil, nil,
	)
	engine.now = func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}

	return &bookingFixture{engine: engine, lessons: lessons, releaser: releaser, alloc: alloc, notifier: notifier}
}

func validBooking() dto.BookLessonRequest {
	return dto.BookLessonRequest{
		StudentID:    "student-1",
		TutorID:      "tutor-1",
		Window:       dto.TimeWindowPayload{Date: "2026-03-03", Start: "10:00", End: "11:00"},
		Location:     "North Branch",
		VehicleClass: "class2",
	}
}

func TestBookHappyPath(t *testing.T) {
	fx := newBookingFixture(t)

	outcome, err := fx.engine.Book(context.Background(), validBooking())
	require.NoError(t, err)
	require.NotNil(t, outcome.Lesson)
	assert.Equal(t, "10:00", outcome.Lesson.StartTime)
	assert.Equal(t, "11:00", outcome.Lesson.EndTime)
	require.NotNil(t, outcome.Allocation)
	assert.Empty(t, outcome.Warnings)

	// Lesson id is assigned before allocation so the reservation points at it.
	assert.Equal(t, outcome.Lesson.ID, fx.alloc.lastLesson)

	// Both parties get notified.
	assert.Len(t, fx.notifier.messages["student-1"], 1)
	assert.Len(t, fx.notifier.messages["tutor-1"], 1)
}

func TestBookSurvivesAllocationFailure(t *testing.T) {
	fx := newBookingFixture(t)
	fx.alloc.allocateErr = appErrors.Clone(appErrors.ErrNoVehicle, "")

	outcome, err := fx.engine.Book(context.Background(), validBooking())
	require.NoError(t, err)
	assert.Nil(t, outcome.Allocation)
	require.Len(t, outcome.Warnings, 1)

	// The lesson was still persisted.
	assert.Len(t, fx.lessons.lessons, 1)
}

func TestBookRejectsInvalidWindow(t *testing.T) {
	fx := newBookingFixture(t)

	req := validBooking()
	req.Window.Start = "11:00"
	req.Window.End = "10:00"

	_, err := fx.engine.Book(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrInvalidWindow)
	assert.Empty(t, fx.lessons.lessons)
}

func TestBookRejectsUnknownClass(t *testing.T) {
	fx := newBookingFixture(t)

	req := validBooking()
	req.VehicleClass = "class9"

	_, err := fx.engine.Book(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBookRejectsUnknownStudent(t *testing.T) {
	fx := newBookingFixture(t)

	req := validBooking()
	req.StudentID = "missing"

	_, err := fx.engine.Book(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestBookRejectsInactiveStudent(t *testing.T) {
	fx := newBookingFixture(t)

	req := validBooking()
	req.StudentID = "inactive"

	_, err := fx.engine.Book(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBookDetectsTutorConflict(t *testing.T) {
	fx := newBookingFixture(t)
	fx.lessons.intervals.tutor = []models.ResourceInterval{
		{LessonID: "other", StartTime: "10:30", EndTime: "11:30"},
	}

	_, err := fx.engine.Book(context.Background(), validBooking())
	assert.ErrorIs(t, err, appErrors.ErrSlotTaken)
	assert.Empty(t, fx.lessons.lessons)
}

func TestBookAllowsTouchingWindows(t *testing.T) {
	fx := newBookingFixture(t)
	fx.lessons.intervals.tutor = []models.ResourceInterval{
		{LessonID: "other", StartTime: "09:00", EndTime: "10:00"},
	}
	fx.lessons.intervals.student = []models.ResourceInterval{
		{LessonID: "other2", StartTime: "11:00", EndTime: "12:00"},
	}

	_, err := fx.engine.Book(context.Background(), validBooking())
	assert.NoError(t, err)
}

func TestBookMapsStorageConflict(t *testing.T) {
	fx := newBookingFixture(t)
	fx.lessons.createErr = &models.SlotConflictError{Student: true}

	_, err := fx.engine.Book(context.Background(), validBooking())
	assert.ErrorIs(t, err, appErrors.ErrSlotTaken)
}

func TestRescheduleDropsStaleAllocation(t *testing.T) {
	fx := newBookingFixture(t)

	outcome, err := fx.engine.Book(context.Background(), validBooking())
	require.NoError(t, err)
	lessonID := outcome.Lesson.ID
	fx.releaser.allocations[lessonID] = &models.VehicleAllocation{LessonID: lessonID}

	moved, err := fx.engine.Reschedule(context.Background(), lessonID, dto.RescheduleLessonRequest{
		Window: dto.TimeWindowPayload{Date: "2026-03-04", Start: "14:00", End: "15:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "14:00", moved.Lesson.StartTime)
	assert.True(t, moved.AllocationDropped)
	assert.NotEmpty(t, moved.Warnings)
}

func TestRescheduleWithoutAllocation(t *testing.T) {
	fx := newBookingFixture(t)

	outcome, err := fx.engine.Book(context.Background(), validBooking())
	require.NoError(t, err)

	moved, err := fx.engine.Reschedule(context.Background(), outcome.Lesson.ID, dto.RescheduleLessonRequest{
		Window: dto.TimeWindowPayload{Date: "2026-03-04", Start: "14:00", End: "15:00"},
	})
	require.NoError(t, err)
	assert.False(t, moved.AllocationDropped)
}

func TestRescheduleSelfOverlapAllowed(t *testing.T) {
	fx := newBookingFixture(t)

	outcome, err := fx.engine.Book(context.Background(), validBooking())
	require.NoError(t, err)
	lessonID := outcome.Lesson.ID

	// The lesson's own window appears on both calendars; moving within it
	// must not self-conflict.
	fx.lessons.intervals.tutor = []models.ResourceInterval{
		{LessonID: lessonID, StartTime: "10:00", EndTime: "11:00"},
	}
	fx.lessons.intervals.student = []models.ResourceInterval{
		{LessonID: lessonID, StartTime: "10:00", EndTime: "11:00"},
	}

	_, err = fx.engine.Reschedule(context.Background(), lessonID, dto.RescheduleLessonRequest{
		Window: dto.TimeWindowPayload{Date: "2026-03-03", Start: "10:30", End: "11:30"},
	})
	assert.NoError(t, err)
}

func TestRescheduleUnknownLesson(t *testing.T) {
	fx := newBookingFixture(t)

	_, err := fx.engine.Reschedule(context.Background(), "missing", dto.RescheduleLessonRequest{
		Window: dto.TimeWindowPayload{Date: "2026-03-04", Start: "14:00", End: "15:00"},
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCancelReleasesAllocation(t *testing.T) {
	fx := newBookingFixture(t)

	outcome, err := fx.engine.Book(context.Background(), validBooking())
	require.NoError(t, err)
	lessonID := outcome.Lesson.ID
	fx.releaser.allocations[lessonID] = &models.VehicleAllocation{LessonID: lessonID}

	require.NoError(t, fx.engine.Cancel(context.Background(), lessonID))
	assert.Empty(t, fx.lessons.lessons)
	assert.Empty(t, fx.releaser.allocations)
}

func TestCancelIsIdempotent(t *testing.T) {
	fx := newBookingFixture(t)

	assert.NoError(t, fx.engine.Cancel(context.Background(), "never-existed"))
	assert.NoError(t, fx.engine.Cancel(context.Background(), "never-existed"))
}

func TestSuggestTimesSkipsConflictsAndCaps(t *testing.T) {
	fx := newBookingFixture(t)
	fx.lessons.intervals.tutor = []models.ResourceInterval{
		{LessonID: "x", StartTime: "08:00", EndTime: "09:00"},
	}

	suggestions, err := fx.engine.SuggestTimes(context.Background(), dto.SuggestTimesQuery{
		TutorID:   "tutor-1",
		StudentID: "student-1",
		Date:      "2026-03-03",
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 5)

	// 08:00 is occupied, so the scan starts at 09:00.
	assert.Equal(t, "09:00", suggestions[0].Start)

	// Morning slots carry the higher confidence; 3 free vehicles adds the
	// fleet bonus.
	assert.Equal(t, 95, suggestions[0].Confidence)

	for _, s := range suggestions {
		assert.Equal(t, 3, s.AvailableVehicles)
	}
}

func TestSuggestTimesNoVehicles(t *testing.T) {
	fx := newBookingFixture(t)
	fx.alloc.free = 0

	suggestions, err := fx.engine.SuggestTimes(context.Background(), dto.SuggestTimesQuery{
		TutorID:   "tutor-1",
		StudentID: "student-1",
		Date:      "2026-03-03",
	})
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
