package models

import "time"

// Lesson represents a booked driving lesson between a student and a tutor.
// Times are stored as zero-padded "HH:MM" strings so lexicographic SQL
// comparison matches chronological order.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	Date      time.Time `db:"lesson_date" json:"date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LessonFilter describes query params for listing lessons.
type LessonFilter struct {
	StudentID string
	TutorID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ResourceInterval is one occupied window on a resource's calendar, tagged
// with the lesson that owns it so reschedules can exclude themselves.
type ResourceInterval struct {
	LessonID  string `db:"lesson_id" json:"lesson_id"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// SlotConflictError reports which side of a booking collided. It is raised
// by the exclusive write path when the in-transaction re-check finds an
// overlap that the optimistic pre-check missed.
type SlotConflictError struct {
	Tutor   bool `json:"tutor"`
	Student bool `json:"student"`
}

// Error implements the error interface.
func (e *SlotConflictError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Tutor && e.Student:
		return "time slot already booked for both tutor and student"
	case e.Tutor:
		return "time slot already booked for the tutor"
	case e.Student:
		return "time slot already booked for the student"
	default:
		return "time slot conflict"
	}
}

// Who labels the conflicting side for API consumers.
func (e *SlotConflictError) Who() string {
	switch {
	case e.Tutor && e.Student:
		return "both"
	case e.Tutor:
		return "tutor"
	default:
		return "student"
	}
}
