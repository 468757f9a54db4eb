package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/models"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type lessonIntervalReader interface {
	TutorIntervals(ctx context.Context, tutorID string, date time.Time) ([]models.ResourceInterval, error)
	StudentIntervals(ctx context.Context, studentID string, date time.Time) ([]models.ResourceInterval, error)
}

// ConflictResult carries both conflict flags so callers can report exactly
// which side of the booking collided.
type ConflictResult struct {
	TutorConflict   bool
	StudentConflict bool
}

// Any reports whether either resource is double-booked.
func (r ConflictResult) Any() bool {
	return r.TutorConflict || r.StudentConflict
}

// ConflictChecker answers whether a window collides with existing lessons
// on the tutor's or the student's calendar. Pure read path; absence of data
// means no conflict.
type ConflictChecker struct {
	lessons lessonIntervalReader
	logger  *zap.Logger
}

// NewConflictChecker wires the interval source.
func NewConflictChecker(lessons lessonIntervalReader, logger *zap.Logger) *ConflictChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{lessons: lessons, logger: logger}
}

// Check evaluates both resources independently. excludeLessonID removes the
// lesson's own interval during reschedules so it never self-conflicts.
func (c *ConflictChecker) Check(ctx context.Context, tutorID, studentID string, date time.Time, window Window, excludeLessonID string) (ConflictResult, error) {
	var result ConflictResult

	tutorIntervals, err := c.lessons.TutorIntervals(ctx, tutorID, date)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor calendar")
	}
	result.TutorConflict = OverlapsAny(tutorIntervals, window, excludeLessonID)

	studentIntervals, err := c.lessons.StudentIntervals(ctx, studentID, date)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student calendar")
	}
	result.StudentConflict = OverlapsAny(studentIntervals, window, excludeLessonID)

	return result, nil
}
