package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/models"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type progressRecordStore interface {
	Create(ctx context.Context, record *models.ProgressRecord) error
	ListByStudent(ctx context.Context, studentID string) ([]models.ProgressRecord, error)
	ListByLesson(ctx context.Context, lessonID string) ([]models.ProgressRecord, error)
}

type progressLessonReader interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Lesson, error)
}

// ProgressService records instructor feedback and serves the derived
// progress score. Scores are cached; any new record invalidates the
// student's entry.
type ProgressService struct {
	records  progressRecordStore
	lessons  progressLessonReader
	cache    Cache
	cacheTTL time.Duration
	notifier bookingNotifier
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewProgressService wires the service. cache may be nil, which disables
// score caching.
func NewProgressService(
	records progressRecordStore,
	lessons progressLessonReader,
	cache Cache,
	cacheTTL time.Duration,
	notifier bookingNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		records:  records,
		lessons:  lessons,
		cache:    cache,
		cacheTTL: cacheTTL,
		notifier: notifier,
		validate: validate,
		logger:   logger,
		now:      time.Now,
	}
}

// AddRecord appends instructor feedback for a lesson. Only the lesson's own
// tutor may record; the student is resolved from the lesson.
func (s *ProgressService) AddRecord(ctx context.Context, tutorID string, req dto.AddProgressRecordRequest) (*models.ProgressRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress record")
	}

	lesson, err := s.lessons.FindByID(ctx, req.LessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if tutorID != "" && lesson.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the lesson's tutor can record progress")
	}

	record := &models.ProgressRecord{
		StudentID:     lesson.StudentID,
		LessonID:      lesson.ID,
		SkillsCovered: req.SkillsCovered,
		Notes:         req.Notes,
		Feedback:      req.Feedback,
		NextFocus:     req.NextFocus,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress record")
	}

	s.invalidateScore(ctx, lesson.StudentID)
	if s.notifier != nil {
		s.notifier.Notify(lesson.StudentID, "Your instructor added feedback for your recent lesson.")
	}
	return record, nil
}

// RecordsForStudent returns a student's full feedback history, newest first.
func (s *ProgressService) RecordsForStudent(ctx context.Context, studentID string) ([]models.ProgressRecord, error) {
	records, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress records")
	}
	return records, nil
}

// Score computes the student's progress score, serving from cache when a
// fresh entry exists.
func (s *ProgressService) Score(ctx context.Context, studentID string) (*models.ProgressScore, error) {
	key := scoreCacheKey(studentID)
	if s.cache != nil {
		var cached models.ProgressScore
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("progress score cache read failed", zap.String("student_id", studentID), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	lessons, records, err := s.history(ctx, studentID)
	if err != nil {
		return nil, err
	}

	score := ComputeProgressScore(lessons, records, s.now())

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, score, s.cacheTTL); err != nil {
			s.logger.Warn("progress score cache write failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return &score, nil
}

// Report builds the JSON progress report consumed by the external exporter.
func (s *ProgressService) Report(ctx context.Context, studentID string) (*dto.ProgressReport, error) {
	lessons, records, err := s.history(ctx, studentID)
	if err != nil {
		return nil, err
	}

	score := ComputeProgressScore(lessons, records, s.now())

	recordsByLesson := lo.GroupBy(records, func(r models.ProgressRecord) string { return r.LessonID })

	history := make([]dto.LessonHistoryEntry, 0, len(lessons))
	for _, lesson := range lessons {
		entry := dto.LessonHistoryEntry{
			Date:     lesson.Date.Format("2006-01-02"),
			Time:     fmt.Sprintf("%s-%s", lesson.StartTime, lesson.EndTime),
			Duration: lessonMinutes(lesson),
			TutorID:  lesson.TutorID,
			Location: lesson.Location,
		}
		if attached := recordsByLesson[lesson.ID]; len(attached) > 0 {
			latest := attached[0]
			entry.SkillsCovered = latest.SkillsCovered
			entry.Notes = latest.Notes
			entry.Feedback = latest.Feedback
			entry.NextFocus = latest.NextFocus
		}
		history = append(history, entry)
	}

	stats := dto.ProgressStatistics{
		TotalLessons:    len(lessons),
		TotalHours:      totalHours(lessons),
		LessonsWithFeed: len(recordsByLesson),
		RecentLessons:   score.RecentLessons,
		ProgressScore:   score.Score,
	}
	if stats.TotalLessons > 0 {
		stats.CompletionRate = float64(stats.LessonsWithFeed) / float64(stats.TotalLessons) * 100
	}

	return &dto.ProgressReport{
		StudentID:  studentID,
		Statistics: stats,
		Score:      score,
		Feedback:   composeFeedback(score, records),
		History:    history,
		Generated:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

// SuggestComment drafts feedback text for a lesson from the student's most
// recent record, giving tutors a starting point.
func (s *ProgressService) SuggestComment(ctx context.Context, lessonID string) (string, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	lessons, err := s.lessons.ListByStudent(ctx, lesson.StudentID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson history")
	}
	records, err := s.records.ListByStudent(ctx, lesson.StudentID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress records")
	}

	var b strings.Builder
	b.WriteString(lessonPhase(len(lessons)))
	if len(records) == 0 {
		b.WriteString(" First lesson feedback: describe the skills covered and how the student handled them.")
		return b.String(), nil
	}

	latest := records[0]
	b.WriteString(" Follow-up on previous lesson")
	if skills := strings.TrimSpace(latest.SkillsCovered); skills != "" {
		b.WriteString(" covering " + skills)
	}
	b.WriteString(".")
	if focus := strings.TrimSpace(latest.NextFocus); focus != "" {
		b.WriteString(" Planned focus: " + focus + ".")
	}
	return b.String(), nil
}

// lessonPhase labels where the student is in the curriculum by lesson count.
func lessonPhase(total int) string {
	switch {
	case total <= 3:
		return "Early stage: build comfort with basic vehicle control."
	case total <= 10:
		return "Developing stage: consolidate core manoeuvres."
	default:
		return "Advanced stage: polish towards test readiness."
	}
}

func (s *ProgressService) history(ctx context.Context, studentID string) ([]models.Lesson, []models.ProgressRecord, error) {
	lessons, err := s.lessons.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson history")
	}
	records, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress records")
	}
	return lessons, records, nil
}

func (s *ProgressService) invalidateScore(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, scoreCacheKey(studentID)); err != nil {
		s.logger.Warn("progress score cache invalidation failed",
			zap.String("student_id", studentID), zap.Error(err))
	}
}

func scoreCacheKey(studentID string) string {
	return "progress:score:" + studentID
}

func lessonMinutes(lesson models.Lesson) int {
	window, err := ParseWindow(lesson.StartTime, lesson.EndTime)
	if err != nil {
		return 0
	}
	return window.Duration()
}

func totalHours(lessons []models.Lesson) float64 {
	minutes := lo.SumBy(lessons, lessonMinutes)
	return float64(minutes) / 60
}

// composeFeedback folds the score analysis and the latest instructor note
// into one narrative paragraph.
func composeFeedback(score models.ProgressScore, records []models.ProgressRecord) string {
	parts := []string{score.Analysis, lessonPhase(score.TotalLessons)}
	if len(records) > 0 {
		latest := records[0]
		if skills := strings.TrimSpace(latest.SkillsCovered); skills != "" {
			parts = append(parts, "Recently covered: "+skills+".")
		}
		if fb := strings.TrimSpace(latest.Feedback); fb != "" {
			parts = append(parts, "Latest instructor feedback: "+fb)
		}
		if focus := strings.TrimSpace(latest.NextFocus); focus != "" {
			parts = append(parts, "Next focus: "+focus+".")
		}
	}
	return strings.Join(parts, " ")
}
