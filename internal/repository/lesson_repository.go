package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/roadready/driveschool-api/internal/models"
)

const lessonColumns = "id, student_id, tutor_id, lesson_date, start_time, end_time, location, created_at, updated_at"

// LessonRepository provides persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID loads a lesson by id.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// List returns lessons with optional filtering and pagination.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("lesson_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("lesson_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"lesson_date": true,
		"start_time":  true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "lesson_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", lessonColumns, base, sortBy, order, size, offset)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}

	return lessons, total, nil
}

// ListByStudent returns all lessons for a student in chronological order.
func (r *LessonRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE student_id = $1 ORDER BY lesson_date ASC, start_time ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, studentID); err != nil {
		return nil, fmt.Errorf("list lessons by student: %w", err)
	}
	return lessons, nil
}

// TutorIntervals returns the occupied windows on a tutor's calendar for a date.
func (r *LessonRepository) TutorIntervals(ctx context.Context, tutorID string, date time.Time) ([]models.ResourceInterval, error) {
	const query = `SELECT id AS lesson_id, start_time, end_time FROM lessons WHERE tutor_id = $1 AND lesson_date = $2 ORDER BY start_time ASC`
	var intervals []models.ResourceInterval
	if err := r.db.SelectContext(ctx, &intervals, query, tutorID, date); err != nil {
		return nil, fmt.Errorf("tutor intervals: %w", err)
	}
	return intervals, nil
}

// StudentIntervals returns the occupied windows on a student's calendar for a date.
func (r *LessonRepository) StudentIntervals(ctx context.Context, studentID string, date time.Time) ([]models.ResourceInterval, error) {
	const query = `SELECT id AS lesson_id, start_time, end_time FROM lessons WHERE student_id = $1 AND lesson_date = $2 ORDER BY start_time ASC`
	var intervals []models.ResourceInterval
	if err := r.db.SelectContext(ctx, &intervals, query, studentID, date); err != nil {
		return nil, fmt.Errorf("student intervals: %w", err)
	}
	return intervals, nil
}

// ExistsAtSlot reports whether the student or tutor already has a lesson
// starting exactly at the given slot on a date.
func (r *LessonRepository) ExistsAtSlot(ctx context.Context, column, userID string, date time.Time, start string) (bool, error) {
	if column != "student_id" && column != "tutor_id" {
		return false, fmt.Errorf("unsupported slot column %q", column)
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM lessons WHERE %s = $1 AND lesson_date = $2 AND start_time = $3)", column)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, date, start); err != nil {
		return false, fmt.Errorf("lesson slot check: %w", err)
	}
	return exists, nil
}

// ListStartingBetween returns lessons on a date whose start time falls in
// [from, to). Used by the reminder sweep.
func (r *LessonRepository) ListStartingBetween(ctx context.Context, date time.Time, from, to string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE lesson_date = $1 AND start_time >= $2 AND start_time < $3 ORDER BY start_time ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, date, from, to); err != nil {
		return nil, fmt.Errorf("list upcoming lessons: %w", err)
	}
	return lessons, nil
}

// CreateExclusive inserts a lesson after re-validating the non-overlap
// invariant inside one transaction. Advisory locks serialise writers per
// tutor and per student, closing the gap between the optimistic conflict
// pre-check and the insert.
func (r *LessonRepository) CreateExclusive(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin book lesson: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockResources(ctx, tx, "tutor:"+lesson.TutorID, "student:"+lesson.StudentID); err != nil {
		return err
	}

	var conflict *models.SlotConflictError
	if conflict, err = r.checkOverlap(ctx, tx, lesson, ""); err != nil {
		return err
	}
	if conflict != nil {
		err = conflict
		return err
	}

	const insert = `INSERT INTO lessons (id, student_id, tutor_id, lesson_date, start_time, end_time, location, created_at, updated_at) VALUES (:id, :student_id, :tutor_id, :lesson_date, :start_time, :end_time, :location, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insert, lesson); err != nil {
		err = fmt.Errorf("insert lesson: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit book lesson: %w", err)
		return err
	}
	return nil
}

// UpdateWindowExclusive moves a lesson to a new window with the same
// transactional guard as CreateExclusive, excluding the lesson's own row
// from the overlap re-check.
func (r *LessonRepository) UpdateWindowExclusive(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reschedule lesson: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockResources(ctx, tx, "tutor:"+lesson.TutorID, "student:"+lesson.StudentID); err != nil {
		return err
	}

	var conflict *models.SlotConflictError
	if conflict, err = r.checkOverlap(ctx, tx, lesson, lesson.ID); err != nil {
		return err
	}
	if conflict != nil {
		err = conflict
		return err
	}

	const update = `UPDATE lessons SET lesson_date = :lesson_date, start_time = :start_time, end_time = :end_time, location = :location, updated_at = :updated_at WHERE id = :id`
	if _, err = sqlx.NamedExecContext(ctx, tx, update, lesson); err != nil {
		err = fmt.Errorf("update lesson window: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit reschedule lesson: %w", err)
		return err
	}
	return nil
}

// Delete removes a lesson. Vehicle allocations cascade via the foreign key.
// Returns false when the lesson did not exist.
func (r *LessonRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete lesson rows: %w", err)
	}
	return affected > 0, nil
}

func (r *LessonRepository) checkOverlap(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson, excludeID string) (*models.SlotConflictError, error) {
	const query = `SELECT
		EXISTS (SELECT 1 FROM lessons WHERE tutor_id = $1 AND lesson_date = $3 AND start_time < $5 AND end_time > $4 AND ($6 = '' OR id <> $6)) AS tutor,
		EXISTS (SELECT 1 FROM lessons WHERE student_id = $2 AND lesson_date = $3 AND start_time < $5 AND end_time > $4 AND ($6 = '' OR id <> $6)) AS student`

	var flags struct {
		Tutor   bool `db:"tutor"`
		Student bool `db:"student"`
	}
	if err := tx.GetContext(ctx, &flags, query, lesson.TutorID, lesson.StudentID, lesson.Date, lesson.StartTime, lesson.EndTime, excludeID); err != nil {
		return nil, fmt.Errorf("overlap re-check: %w", err)
	}
	if flags.Tutor || flags.Student {
		return &models.SlotConflictError{Tutor: flags.Tutor, Student: flags.Student}, nil
	}
	return nil, nil
}

func lockResources(ctx context.Context, tx *sqlx.Tx, keys ...string) error {
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("lock resource %s: %w", key, err)
		}
	}
	return nil
}
