package models

import "time"

// ProgressRecord is an append-only instructor feedback entry for a lesson.
// Several records per lesson are allowed; scoring only reads the most recent
// one per student.
type ProgressRecord struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	LessonID      string    `db:"lesson_id" json:"lesson_id"`
	SkillsCovered string    `db:"skills_covered" json:"skills_covered"`
	Notes         string    `db:"progress_notes" json:"progress_notes"`
	Feedback      string    `db:"instructor_feedback" json:"instructor_feedback"`
	NextFocus     string    `db:"next_lesson_focus" json:"next_lesson_focus"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ProgressScore is the derived heuristic summary of a student's history.
// It is recomputed on demand and never stored.
type ProgressScore struct {
	Score           int      `json:"score"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	TotalLessons    int      `json:"total_lessons"`
	RecentLessons   int      `json:"recent_lessons"`
	TotalRecords    int      `json:"progress_records"`
}
