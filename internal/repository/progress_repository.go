package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/roadready/driveschool-api/internal/models"
)

const progressColumns = "id, student_id, lesson_id, skills_covered, progress_notes, instructor_feedback, next_lesson_focus, created_at"

// ProgressRepository provides persistence for instructor progress records.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Create appends a progress record. Records are never updated or deleted.
func (r *ProgressRepository) Create(ctx context.Context, record *models.ProgressRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO progress_records (id, student_id, lesson_id, skills_covered, progress_notes, instructor_feedback, next_lesson_focus, created_at) VALUES (:id, :student_id, :lesson_id, :skills_covered, :progress_notes, :instructor_feedback, :next_lesson_focus, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create progress record: %w", err)
	}
	return nil
}

// ListByStudent returns a student's records, most recent first.
func (r *ProgressRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ProgressRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM progress_records WHERE student_id = $1 ORDER BY created_at DESC", progressColumns)
	var records []models.ProgressRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}
	return records, nil
}

// ListByLesson returns the records attached to one lesson, most recent first.
func (r *ProgressRepository) ListByLesson(ctx context.Context, lessonID string) ([]models.ProgressRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM progress_records WHERE lesson_id = $1 ORDER BY created_at DESC", progressColumns)
	var records []models.ProgressRecord
	if err := r.db.SelectContext(ctx, &records, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson progress records: %w", err)
	}
	return records, nil
}
