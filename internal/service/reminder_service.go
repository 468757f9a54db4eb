package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/pkg/config"
)

type reminderLessonReader interface {
	ListStartingBetween(ctx context.Context, date time.Time, from, to string) ([]models.Lesson, error)
}

// ReminderService periodically sweeps for lessons starting within the lead
// window and notifies both parties. Each lesson is reminded at most once
// per process lifetime.
type ReminderService struct {
	lessons  reminderLessonReader
	notifier bookingNotifier
	cfg      config.RemindersConfig
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time

	mu       sync.Mutex
	reminded map[string]struct{}
}

// NewReminderService wires the sweep. Start is a no-op when reminders are
// disabled in config.
func NewReminderService(lessons reminderLessonReader, notifier bookingNotifier, cfg config.RemindersConfig, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		lessons:  lessons,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		reminded: make(map[string]struct{}),
	}
}

// Start schedules the sweep on the configured cron expression.
func (s *ReminderService) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("reminder sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("reminder sweep scheduled",
		zap.String("schedule", s.cfg.Schedule),
		zap.Duration("lead", s.cfg.Lead))
	return nil
}

// Stop halts the cron runner and waits for an in-flight sweep.
func (s *ReminderService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep notifies both parties of every lesson starting within the lead
// window from now.
func (s *ReminderService) Sweep(ctx context.Context) error {
	now := s.now()
	from := now.Hour()*60 + now.Minute()
	to := from + int(s.cfg.Lead.Minutes())
	if to > 24*60 {
		to = 24 * 60
	}

	lessons, err := s.lessons.ListStartingBetween(ctx, dateOnly(now), FormatClock(from), FormatClock(to))
	if err != nil {
		return fmt.Errorf("load upcoming lessons: %w", err)
	}

	for _, lesson := range lessons {
		if !s.markReminded(lesson.ID) {
			continue
		}
		message := fmt.Sprintf("Reminder: your lesson starts at %s at %s.", lesson.StartTime, lesson.Location)
		s.notifier.Notify(lesson.StudentID, message)
		s.notifier.Notify(lesson.TutorID, message)
		s.logger.Debug("lesson reminder sent", zap.String("lesson_id", lesson.ID))
	}
	return nil
}

func (s *ReminderService) markReminded(lessonID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.reminded[lessonID]; seen {
		return false
	}
	s.reminded[lessonID] = struct{}{}
	return true
}
