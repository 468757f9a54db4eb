package dto

import "github.com/roadready/driveschool-api/internal/models"

// AddProgressRecordRequest captures instructor feedback after a lesson.
type AddProgressRecordRequest struct {
	LessonID      string `json:"lesson_id" validate:"required"`
	SkillsCovered string `json:"skills_covered" validate:"required,max=500"`
	Notes         string `json:"progress_notes" validate:"omitempty,max=2000"`
	Feedback      string `json:"instructor_feedback" validate:"required,max=2000"`
	NextFocus     string `json:"next_lesson_focus" validate:"omitempty,max=500"`
}

// ProgressStatistics aggregates a student's lesson history for reporting.
type ProgressStatistics struct {
	TotalLessons    int     `json:"total_lessons"`
	TotalHours      float64 `json:"total_hours"`
	LessonsWithFeed int     `json:"lessons_with_progress"`
	CompletionRate  float64 `json:"completion_rate"`
	RecentLessons   int     `json:"recent_lessons_30_days"`
	ProgressScore   int     `json:"progress_score"`
}

// LessonHistoryEntry is one row of the exported lesson history.
type LessonHistoryEntry struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	Duration      int    `json:"duration_minutes"`
	TutorID       string `json:"tutor_id"`
	Location      string `json:"location"`
	SkillsCovered string `json:"skills_covered"`
	Notes         string `json:"progress_notes"`
	Feedback      string `json:"instructor_feedback"`
	NextFocus     string `json:"next_lesson_focus"`
}

// ProgressReport is the JSON payload consumed by the external report
// exporter. Formatting (CSV/PDF) happens outside this service.
type ProgressReport struct {
	StudentID  string               `json:"student_id"`
	Statistics ProgressStatistics   `json:"statistics"`
	Score      models.ProgressScore `json:"score"`
	Feedback   string               `json:"feedback"`
	History    []LessonHistoryEntry `json:"lesson_history"`
	Generated  string               `json:"generated_at"`
}
