package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/pkg/config"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type timetableLessonStore interface {
	ExistsAtSlot(ctx context.Context, column, userID string, date time.Time, start string) (bool, error)
	CreateExclusive(ctx context.Context, lesson *models.Lesson) error
}

type timetableRoster interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// TimetableGenerator bulk-books a default lesson for every active student
// over the next scheduling horizon, pairing each with a random tutor drawn
// from those still free at the slot. One failed pairing never aborts the run.
type TimetableGenerator struct {
	lessons  timetableLessonStore
	users    timetableRoster
	notifier bookingNotifier
	cfg      config.TimetableConfig
	logger   *zap.Logger

	// pick is injectable so runs are deterministic under test.
	pick func(n int) int
	now  func() time.Time
}

// NewTimetableGenerator wires the generator. cfg carries the slot window,
// location and horizon length.
func NewTimetableGenerator(lessons timetableLessonStore, users timetableRoster, notifier bookingNotifier, cfg config.TimetableConfig, logger *zap.Logger) *TimetableGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableGenerator{
		lessons:  lessons,
		users:    users,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		pick:     rand.Intn,
		now:      time.Now,
	}
}

// Generate books one slot per student per upcoming weekday. The tutor is
// drawn at random from those with no lesson at the slot; a student with no
// free tutor is skipped, as are students already holding the slot. Storage
// conflicts raised by racing writers are counted as skips too.
func (g *TimetableGenerator) Generate(ctx context.Context) (*dto.TimetableRunResult, error) {
	students, err := g.users.ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	tutors, err := g.users.ListByRole(ctx, models.RoleTutor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}
	if len(students) == 0 || len(tutors) == 0 {
		return &dto.TimetableRunResult{}, nil
	}

	result := &dto.TimetableRunResult{}
	for _, date := range g.upcomingWeekdays() {
		for _, student := range students {
			result.Attempted++

			busy, err := g.lessons.ExistsAtSlot(ctx, "student_id", student.ID, date, g.cfg.SlotStart)
			if err != nil {
				result.Failed++
				g.logger.Error("timetable slot check failed",
					zap.String("student_id", student.ID), zap.Error(err))
				continue
			}
			if busy {
				result.Skipped++
				continue
			}

			available, err := g.availableTutors(ctx, tutors, date)
			if err != nil {
				result.Failed++
				g.logger.Error("timetable tutor check failed",
					zap.Time("date", date), zap.Error(err))
				continue
			}
			if len(available) == 0 {
				result.Skipped++
				continue
			}
			tutor := available[g.pick(len(available))]

			lesson := &models.Lesson{
				StudentID: student.ID,
				TutorID:   tutor.ID,
				Date:      date,
				StartTime: g.cfg.SlotStart,
				EndTime:   g.cfg.SlotEnd,
				Location:  g.cfg.Location,
			}
			if err := g.lessons.CreateExclusive(ctx, lesson); err != nil {
				var slotErr *models.SlotConflictError
				if errors.As(err, &slotErr) {
					result.Skipped++
					continue
				}
				result.Failed++
				g.logger.Error("timetable booking failed",
					zap.String("student_id", student.ID),
					zap.String("tutor_id", tutor.ID),
					zap.Time("date", date),
					zap.Error(err))
				continue
			}
			g.notifyPair(student, tutor, lesson)
			result.Created++
		}
	}

	g.logger.Info("timetable run complete",
		zap.Int("created", result.Created),
		zap.Int("attempted", result.Attempted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// availableTutors keeps the tutors with no lesson at the slot on date.
func (g *TimetableGenerator) availableTutors(ctx context.Context, tutors []models.User, date time.Time) ([]models.User, error) {
	var available []models.User
	for _, tutor := range tutors {
		taken, err := g.lessons.ExistsAtSlot(ctx, "tutor_id", tutor.ID, date, g.cfg.SlotStart)
		if err != nil {
			return nil, err
		}
		if !taken {
			available = append(available, tutor)
		}
	}
	return available, nil
}

func (g *TimetableGenerator) notifyPair(student, tutor models.User, lesson *models.Lesson) {
	if g.notifier == nil {
		return
	}
	when := fmt.Sprintf("%s at %s", lesson.Date.Format("2006-01-02"), lesson.StartTime)
	g.notifier.Notify(student.ID, fmt.Sprintf("Lesson scheduled with %s on %s.", tutor.FullName, when))
	g.notifier.Notify(tutor.ID, fmt.Sprintf("Lesson scheduled with %s on %s.", student.FullName, when))
}

// upcomingWeekdays returns the next HorizonDays Monday-to-Friday dates,
// starting tomorrow.
func (g *TimetableGenerator) upcomingWeekdays() []time.Time {
	horizon := g.cfg.HorizonDays
	if horizon <= 0 {
		horizon = 5
	}

	var days []time.Time
	day := dateOnly(g.now()).AddDate(0, 0, 1)
	for len(days) < horizon {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}
