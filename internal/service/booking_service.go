package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/models"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type bookingLessonStore interface {
	lessonIntervalReader
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	CreateExclusive(ctx context.Context, lesson *models.Lesson) error
	UpdateWindowExclusive(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) (bool, error)
}

type rosterReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type lessonAllocator interface {
	Suggest(ctx context.Context, date time.Time, window Window, class models.VehicleClass) ([]models.VehicleSuggestion, error)
	Allocate(ctx context.Context, lessonID string, date time.Time, window Window, class models.VehicleClass) (*models.VehicleAllocation, *models.VehicleSuggestion, error)
	CountFree(ctx context.Context, date time.Time, window Window) (int, error)
}

type allocationReleaser interface {
	FindAllocationByLesson(ctx context.Context, lessonID string) (*models.VehicleAllocation, error)
	DeleteAllocationByLesson(ctx context.Context, lessonID string) (bool, error)
}

type bookingNotifier interface {
	Notify(userID, message string)
}

type bookingMetrics interface {
	LessonBooked()
	BookingConflict(side string)
	LessonRescheduled()
	LessonCancelled()
}

// SchedulingEngine owns the lesson lifecycle: booking, rescheduling and
// cancellation, each with conflict detection and best-effort vehicle
// allocation. A booking whose vehicle allocation fails still stands; the
// caller is told via warnings.
type SchedulingEngine struct {
	lessons     bookingLessonStore
	users       rosterReader
	allocations allocationReleaser
	conflicts   *ConflictChecker
	allocator   lessonAllocator
	notifier    bookingNotifier
	metrics     bookingMetrics
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSchedulingEngine wires the engine's dependencies.
func NewSchedulingEngine(
	lessons bookingLessonStore,
	users rosterReader,
	allocations allocationReleaser,
	conflicts *ConflictChecker,
	allocator lessonAllocator,
	notifier bookingNotifier,
	metrics bookingMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *SchedulingEngine {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingEngine{
		lessons:     lessons,
		users:       users,
		allocations: allocations,
		conflicts:   conflicts,
		allocator:   allocator,
		notifier:    notifier,
		metrics:     metrics,
		validate:    validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Book validates the request, checks both calendars, writes the lesson via
// the exclusive path and then tries to reserve a vehicle. Allocation failure
// degrades to a warning, never a rollback.
func (s *SchedulingEngine) Book(ctx context.Context, req dto.BookLessonRequest) (*dto.BookingOutcome, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking request")
	}

	class := models.VehicleClass(req.VehicleClass)
	if !class.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown vehicle class %q", req.VehicleClass))
	}

	date, window, err := s.parseWindow(req.Window)
	if err != nil {
		return nil, err
	}

	if err := s.requireRole(ctx, req.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, req.TutorID, models.RoleTutor); err != nil {
		return nil, err
	}

	conflict, err := s.conflicts.Check(ctx, req.TutorID, req.StudentID, date, window, "")
	if err != nil {
		return nil, err
	}
	if conflict.Any() {
		return nil, s.conflictError(conflict)
	}

	lesson := &models.Lesson{
		StudentID: req.StudentID,
		TutorID:   req.TutorID,
		Date:      date,
		StartTime: window.StartClock(),
		EndTime:   window.EndClock(),
		Location:  req.Location,
	}
	if err := s.lessons.CreateExclusive(ctx, lesson); err != nil {
		var slotErr *models.SlotConflictError
		if errors.As(err, &slotErr) {
			return nil, s.conflictError(ConflictResult{TutorConflict: slotErr.Tutor, StudentConflict: slotErr.Student})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book lesson")
	}
	if s.metrics != nil {
		s.metrics.LessonBooked()
	}

	outcome := &dto.BookingOutcome{Lesson: lesson}

	alloc, suggestion, allocErr := s.allocator.Allocate(ctx, lesson.ID, date, window, class)
	switch {
	case allocErr == nil:
		outcome.Allocation = alloc
		outcome.Suggestion = suggestion
	case errors.Is(allocErr, appErrors.ErrNoVehicle):
		outcome.Warnings = append(outcome.Warnings, "lesson booked without a vehicle: none available for the window")
	default:
		s.logger.Error("vehicle allocation failed after booking",
			zap.String("lesson_id", lesson.ID), zap.Error(allocErr))
		outcome.Warnings = append(outcome.Warnings, "lesson booked without a vehicle: allocation failed")
	}

	s.notifyBooking(lesson)
	return outcome, nil
}

// Reschedule moves an existing lesson to a new window. The lesson's own
// interval is excluded from conflict checks. A vehicle allocation made for
// the old window no longer covers the new one, so it is released and the
// caller flagged to re-allocate.
func (s *SchedulingEngine) Reschedule(ctx context.Context, lessonID string, req dto.RescheduleLessonRequest) (*dto.RescheduleOutcome, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule request")
	}

	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	date, window, err := s.parseWindow(req.Window)
	if err != nil {
		return nil, err
	}

	conflict, err := s.conflicts.Check(ctx, lesson.TutorID, lesson.StudentID, date, window, lesson.ID)
	if err != nil {
		return nil, err
	}
	if conflict.Any() {
		return nil, s.conflictError(conflict)
	}

	lesson.Date = date
	lesson.StartTime = window.StartClock()
	lesson.EndTime = window.EndClock()
	if req.Location != nil {
		lesson.Location = *req.Location
	}

	if err := s.lessons.UpdateWindowExclusive(ctx, lesson); err != nil {
		var slotErr *models.SlotConflictError
		if errors.As(err, &slotErr) {
			return nil, s.conflictError(ConflictResult{TutorConflict: slotErr.Tutor, StudentConflict: slotErr.Student})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule lesson")
	}
	if s.metrics != nil {
		s.metrics.LessonRescheduled()
	}

	outcome := &dto.RescheduleOutcome{Lesson: lesson}

	dropped, err := s.allocations.DeleteAllocationByLesson(ctx, lesson.ID)
	if err != nil {
		s.logger.Error("failed to release stale vehicle allocation",
			zap.String("lesson_id", lesson.ID), zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, "previous vehicle allocation could not be released")
	} else if dropped {
		outcome.AllocationDropped = true
		outcome.Warnings = append(outcome.Warnings, "vehicle allocation released; request a new vehicle for the updated window")
	}

	s.notifyReschedule(lesson)
	return outcome, nil
}

// Cancel removes a lesson. Cancelling an already-cancelled or unknown lesson
// is a no-op success so retries stay safe.
func (s *SchedulingEngine) Cancel(ctx context.Context, lessonID string) error {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	if _, err := s.allocations.DeleteAllocationByLesson(ctx, lessonID); err != nil {
		s.logger.Warn("failed to release allocation during cancel",
			zap.String("lesson_id", lessonID), zap.Error(err))
	}

	deleted, err := s.lessons.Delete(ctx, lessonID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel lesson")
	}
	if deleted {
		if s.metrics != nil {
			s.metrics.LessonCancelled()
		}
		s.notifyCancel(lesson)
	}
	return nil
}

// Get loads a single lesson.
func (s *SchedulingEngine) Get(ctx context.Context, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// List returns lessons matching the filter with pagination metadata.
func (s *SchedulingEngine) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	lessons, total, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return lessons, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SuggestVehicles returns ranked vehicle candidates for a window without
// reserving anything.
func (s *SchedulingEngine) SuggestVehicles(ctx context.Context, query dto.SuggestVehiclesQuery) ([]models.VehicleSuggestion, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion query")
	}
	class := models.VehicleClass(query.VehicleClass)
	if !class.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown vehicle class %q", query.VehicleClass))
	}
	date, window, err := s.parseWindow(query.Window)
	if err != nil {
		return nil, err
	}
	return s.allocator.Suggest(ctx, date, window, class)
}

// Hourly slots scanned by SuggestTimes and the confidence heuristics applied
// to each open one.
const (
	suggestSlotMinutes   = 60
	suggestBaseConf      = 80
	suggestMorningBonus  = 10
	suggestVehicleBonus  = 5
	suggestVehicleFleet  = 2
	suggestMorningCutoff = 12 * 60
	suggestMaxResults    = 5
)

// SuggestTimes scans the business day in hourly slots and returns up to five
// that are free for both the tutor and the student, ranked by a presentation
// confidence.
func (s *SchedulingEngine) SuggestTimes(ctx context.Context, query dto.SuggestTimesQuery) ([]dto.TimeSlotSuggestion, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time suggestion query")
	}
	date, err := ParseDate(query.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}

	var suggestions []dto.TimeSlotSuggestion
	for start := dayOpenMinute; start+suggestSlotMinutes <= dayCloseMinute; start += suggestSlotMinutes {
		window := Window{Start: start, End: start + suggestSlotMinutes}

		conflict, err := s.conflicts.Check(ctx, query.TutorID, query.StudentID, date, window, "")
		if err != nil {
			return nil, err
		}
		if conflict.Any() {
			continue
		}

		free, err := s.allocator.CountFree(ctx, date, window)
		if err != nil {
			return nil, err
		}
		if free == 0 {
			continue
		}

		confidence := suggestBaseConf
		reason := "Both calendars are free"
		if start < suggestMorningCutoff {
			confidence += suggestMorningBonus
			reason = "Morning slot, both calendars are free"
		}
		if free > suggestVehicleFleet {
			confidence += suggestVehicleBonus
		}

		suggestions = append(suggestions, dto.TimeSlotSuggestion{
			Date:              query.Date,
			Start:             window.StartClock(),
			End:               window.EndClock(),
			AvailableVehicles: free,
			Confidence:        confidence,
			Reason:            reason,
		})
		if len(suggestions) == suggestMaxResults {
			break
		}
	}
	return suggestions, nil
}

func (s *SchedulingEngine) parseWindow(payload dto.TimeWindowPayload) (time.Time, Window, error) {
	date, err := ParseDate(payload.Date)
	if err != nil {
		return time.Time{}, Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}
	window, err := ParseWindow(payload.Start, payload.End)
	if err != nil {
		return time.Time{}, Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid time window")
	}
	if err := ValidateWindow(date, window, s.now()); err != nil {
		return time.Time{}, Window{}, err
	}
	return date, window, nil
}

func (s *SchedulingEngine) requireRole(ctx context.Context, userID string, role models.UserRole) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", roleLabel(role)))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s is not a %s", userID, roleLabel(role)))
	}
	if !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s account is inactive", roleLabel(role)))
	}
	return nil
}

func (s *SchedulingEngine) conflictError(conflict ConflictResult) error {
	slot := &models.SlotConflictError{Tutor: conflict.TutorConflict, Student: conflict.StudentConflict}
	if s.metrics != nil {
		s.metrics.BookingConflict(slot.Who())
	}
	return appErrors.Wrap(slot, appErrors.ErrSlotTaken.Code, appErrors.ErrSlotTaken.Status, slot.Error())
}

func (s *SchedulingEngine) notifyBooking(lesson *models.Lesson) {
	if s.notifier == nil {
		return
	}
	when := fmt.Sprintf("%s %s-%s", lesson.Date.Format("2006-01-02"), lesson.StartTime, lesson.EndTime)
	s.notifier.Notify(lesson.StudentID, fmt.Sprintf("Your lesson on %s at %s is confirmed.", when, lesson.Location))
	s.notifier.Notify(lesson.TutorID, fmt.Sprintf("New lesson booked on %s at %s.", when, lesson.Location))
}

func (s *SchedulingEngine) notifyReschedule(lesson *models.Lesson) {
	if s.notifier == nil {
		return
	}
	when := fmt.Sprintf("%s %s-%s", lesson.Date.Format("2006-01-02"), lesson.StartTime, lesson.EndTime)
	s.notifier.Notify(lesson.StudentID, fmt.Sprintf("Your lesson was moved to %s.", when))
	s.notifier.Notify(lesson.TutorID, fmt.Sprintf("A lesson was moved to %s.", when))
}

func (s *SchedulingEngine) notifyCancel(lesson *models.Lesson) {
	if s.notifier == nil {
		return
	}
	when := fmt.Sprintf("%s %s", lesson.Date.Format("2006-01-02"), lesson.StartTime)
	s.notifier.Notify(lesson.StudentID, fmt.Sprintf("Your lesson on %s was cancelled.", when))
	s.notifier.Notify(lesson.TutorID, fmt.Sprintf("The lesson on %s was cancelled.", when))
}

func roleLabel(role models.UserRole) string {
	switch role {
	case models.RoleTutor:
		return "tutor"
	case models.RoleStudent:
		return "student"
	default:
		return "user"
	}
}
