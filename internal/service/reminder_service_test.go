package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/pkg/config"
)

type fakeReminderLessons struct {
	lessons  []models.Lesson
	lastFrom string
	lastTo   string
}

func (f *fakeReminderLessons) ListStartingBetween(_ context.Context, _ time.Time, from, to string) ([]models.Lesson, error) {
	f.lastFrom = from
	f.lastTo = to
	return f.lessons, nil
}

func newReminderFixture(lessons *fakeReminderLessons, notifier *fakeNotifier) *ReminderService {
	svc := NewReminderService(lessons, notifier, config.RemindersConfig{
		Enabled: true,
		Lead:    10 * time.Minute,
	}, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 3, 9, 55, 0, 0, time.UTC) }
	return svc
}

func TestSweepNotifiesBothParties(t *testing.T) {
	lessons := &fakeReminderLessons{lessons: []models.Lesson{
		{ID: "l1", StudentID: "s1", TutorID: "t1", StartTime: "10:00", Location: "HQ"},
	}}
	notifier := newFakeNotifier()
	svc := newReminderFixture(lessons, notifier)

	require.NoError(t, svc.Sweep(context.Background()))

	assert.Equal(t, "09:55", lessons.lastFrom)
	assert.Equal(t, "10:05", lessons.lastTo)
	assert.Len(t, notifier.messages["s1"], 1)
	assert.Len(t, notifier.messages["t1"], 1)
	assert.Contains(t, notifier.messages["s1"][0], "10:00")
}

func TestSweepRemindsOnce(t *testing.T) {
	lessons := &fakeReminderLessons{lessons: []models.Lesson{
		{ID: "l1", StudentID: "s1", TutorID: "t1", StartTime: "10:00"},
	}}
	notifier := newFakeNotifier()
	svc := newReminderFixture(lessons, notifier)

	require.NoError(t, svc.Sweep(context.Background()))
	require.NoError(t, svc.Sweep(context.Background()))

	assert.Len(t, notifier.messages["s1"], 1)
}

func TestSweepClampsAtMidnight(t *testing.T) {
	lessons := &fakeReminderLessons{}
	notifier := newFakeNotifier()
	svc := newReminderFixture(lessons, notifier)
	svc.now = func() time.Time { return time.Date(2026, 3, 3, 23, 58, 0, 0, time.UTC) }

	require.NoError(t, svc.Sweep(context.Background()))
	assert.Equal(t, "24:00", lessons.lastTo)
}
