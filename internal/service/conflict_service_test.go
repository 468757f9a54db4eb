package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadready/driveschool-api/internal/models"
)

type fakeIntervalReader struct {
	tutor   []models.ResourceInterval
	student []models.ResourceInterval
	err     error
}

func (f *fakeIntervalReader) TutorIntervals(_ context.Context, _ string, _ time.Time) ([]models.ResourceInterval, error) {
	return f.tutor, f.err
}

func (f *fakeIntervalReader) StudentIntervals(_ context.Context, _ string, _ time.Time) ([]models.ResourceInterval, error) {
	return f.student, f.err
}

func TestConflictCheckerBothFree(t *testing.T) {
	checker := NewConflictChecker(&fakeIntervalReader{}, nil)

	result, err := checker.Check(context.Background(), "tutor-1", "student-1", time.Now(), Window{600, 660}, "")
	require.NoError(t, err)
	assert.False(t, result.Any())
}

func TestConflictCheckerReportsSides(t *testing.T) {
	reader := &fakeIntervalReader{
		tutor:   []models.ResourceInterval{{LessonID: "x", StartTime: "10:00", EndTime: "11:00"}},
		student: []models.ResourceInterval{{LessonID: "y", StartTime: "14:00", EndTime: "15:00"}},
	}
	checker := NewConflictChecker(reader, nil)

	result, err := checker.Check(context.Background(), "tutor-1", "student-1", time.Now(), Window{630, 690}, "")
	require.NoError(t, err)
	assert.True(t, result.TutorConflict)
	assert.False(t, result.StudentConflict)
	assert.True(t, result.Any())

	result, err = checker.Check(context.Background(), "tutor-1", "student-1", time.Now(), Window{870, 930}, "")
	require.NoError(t, err)
	assert.False(t, result.TutorConflict)
	assert.True(t, result.StudentConflict)
}

func TestConflictCheckerExcludesOwnLesson(t *testing.T) {
	reader := &fakeIntervalReader{
		tutor:   []models.ResourceInterval{{LessonID: "own", StartTime: "10:00", EndTime: "11:00"}},
		student: []models.ResourceInterval{{LessonID: "own", StartTime: "10:00", EndTime: "11:00"}},
	}
	checker := NewConflictChecker(reader, nil)

	result, err := checker.Check(context.Background(), "tutor-1", "student-1", time.Now(), Window{600, 660}, "own")
	require.NoError(t, err)
	assert.False(t, result.Any())
}

func TestConflictCheckerPropagatesErrors(t *testing.T) {
	reader := &fakeIntervalReader{err: errors.New("db down")}
	checker := NewConflictChecker(reader, nil)

	_, err := checker.Check(context.Background(), "tutor-1", "student-1", time.Now(), Window{600, 660}, "")
	assert.Error(t, err)
}
