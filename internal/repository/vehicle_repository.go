package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/roadready/driveschool-api/internal/models"
)

// ErrAllocationConflict is returned when the exclusion constraint on
// vehicle_allocations rejects a reservation because a concurrent writer got
// the vehicle first.
var ErrAllocationConflict = errors.New("vehicle allocation conflict")

const vehicleColumns = "id, registration_number, model, vehicle_class, available, created_at, updated_at"
const allocationColumns = "id, lesson_id, vehicle_id, lesson_date, start_time, end_time, allocated_at"

// VehicleRepository provides persistence for vehicles and their allocations.
type VehicleRepository struct {
	db *sqlx.DB
}

// NewVehicleRepository creates a new vehicle repository.
func NewVehicleRepository(db *sqlx.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// List returns vehicles with optional filtering and pagination.
func (r *VehicleRepository) List(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, int, error) {
	base := "FROM vehicles WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Class != nil {
		conditions = append(conditions, fmt.Sprintf("vehicle_class = $%d", len(args)+1))
		args = append(args, *filter.Class)
	}
	if filter.Available != nil {
		conditions = append(conditions, fmt.Sprintf("available = $%d", len(args)+1))
		args = append(args, *filter.Available)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY vehicle_class ASC, registration_number ASC LIMIT %d OFFSET %d", vehicleColumns, base, size, offset)
	var vehicles []models.Vehicle
	if err := r.db.SelectContext(ctx, &vehicles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count vehicles: %w", err)
	}

	return vehicles, total, nil
}

// FindByID loads a vehicle by id.
func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*models.Vehicle, error) {
	query := fmt.Sprintf("SELECT %s FROM vehicles WHERE id = $1", vehicleColumns)
	var vehicle models.Vehicle
	if err := r.db.GetContext(ctx, &vehicle, query, id); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// Create stores a new vehicle record.
func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = now

	const query = `INSERT INTO vehicles (id, registration_number, model, vehicle_class, available, created_at, updated_at) VALUES (:id, :registration_number, :model, :vehicle_class, :available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vehicle); err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

// Update modifies a vehicle record.
func (r *VehicleRepository) Update(ctx context.Context, vehicle *models.Vehicle) error {
	vehicle.UpdatedAt = time.Now().UTC()
	const query = `UPDATE vehicles SET registration_number = :registration_number, model = :model, vehicle_class = :vehicle_class, available = :available, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, vehicle); err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return nil
}

// SetAvailability flips the operator-controlled availability flag.
func (r *VehicleRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	const query = `UPDATE vehicles SET available = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, available, time.Now().UTC()); err != nil {
		return fmt.Errorf("set vehicle availability: %w", err)
	}
	return nil
}

// Delete removes a vehicle by id.
func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return nil
}

// ListAvailable returns operator-available vehicles in stable class/plate
// order; suggestion tiers preserve this ordering.
func (r *VehicleRepository) ListAvailable(ctx context.Context) ([]models.Vehicle, error) {
	query := fmt.Sprintf("SELECT %s FROM vehicles WHERE available = TRUE ORDER BY vehicle_class ASC, registration_number ASC", vehicleColumns)
	var vehicles []models.Vehicle
	if err := r.db.SelectContext(ctx, &vehicles, query); err != nil {
		return nil, fmt.Errorf("list available vehicles: %w", err)
	}
	return vehicles, nil
}

// BusyVehicleIDs returns vehicles with an allocation overlapping the window.
func (r *VehicleRepository) BusyVehicleIDs(ctx context.Context, date time.Time, start, end string) ([]string, error) {
	const query = `SELECT DISTINCT vehicle_id FROM vehicle_allocations WHERE lesson_date = $1 AND start_time < $3 AND end_time > $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, date, start, end); err != nil {
		return nil, fmt.Errorf("busy vehicle ids: %w", err)
	}
	return ids, nil
}

// CreateAllocation reserves a vehicle for a lesson. A unique constraint on
// lesson_id and an exclusion constraint on (vehicle_id, lesson_date, time
// range) arbitrate concurrent writers; violations surface as
// ErrAllocationConflict so callers can retry with another vehicle.
func (r *VehicleRepository) CreateAllocation(ctx context.Context, alloc *models.VehicleAllocation) error {
	if alloc.ID == "" {
		alloc.ID = uuid.NewString()
	}
	if alloc.AllocatedAt.IsZero() {
		alloc.AllocatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO vehicle_allocations (id, lesson_id, vehicle_id, lesson_date, start_time, end_time, allocated_at) VALUES (:id, :lesson_id, :vehicle_id, :lesson_date, :start_time, :end_time, :allocated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alloc); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
			return fmt.Errorf("allocate vehicle %s: %w", alloc.VehicleID, ErrAllocationConflict)
		}
		return fmt.Errorf("create allocation: %w", err)
	}
	return nil
}

// FindAllocationByLesson loads the allocation owned by a lesson, if any.
func (r *VehicleRepository) FindAllocationByLesson(ctx context.Context, lessonID string) (*models.VehicleAllocation, error) {
	query := fmt.Sprintf("SELECT %s FROM vehicle_allocations WHERE lesson_id = $1", allocationColumns)
	var alloc models.VehicleAllocation
	if err := r.db.GetContext(ctx, &alloc, query, lessonID); err != nil {
		return nil, err
	}
	return &alloc, nil
}

// DeleteAllocationByLesson releases a lesson's vehicle reservation.
// Returns false when no allocation existed.
func (r *VehicleRepository) DeleteAllocationByLesson(ctx context.Context, lessonID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicle_allocations WHERE lesson_id = $1`, lessonID)
	if err != nil {
		return false, fmt.Errorf("delete allocation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete allocation rows: %w", err)
	}
	return affected > 0, nil
}

// CountAllocationsSince counts a vehicle's reservations on or after a date.
func (r *VehicleRepository) CountAllocationsSince(ctx context.Context, vehicleID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM vehicle_allocations WHERE vehicle_id = $1 AND lesson_date >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, vehicleID, since); err != nil {
		return 0, fmt.Errorf("count allocations: %w", err)
	}
	return count, nil
}
