package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/models"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type vehicleAdminStore interface {
	List(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, int, error)
	FindByID(ctx context.Context, id string) (*models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) error
	Update(ctx context.Context, vehicle *models.Vehicle) error
	SetAvailability(ctx context.Context, id string, available bool) error
	Delete(ctx context.Context, id string) error
	ListAvailable(ctx context.Context) ([]models.Vehicle, error)
	CountAllocationsSince(ctx context.Context, vehicleID string, since time.Time) (int, error)
}

// Utilization report window and capacity assumptions.
const (
	utilizationWindowDays = 30
	slotsPerDay           = 8

	utilizationHigh   = 70.0
	utilizationMedium = 35.0
)

// VehicleService owns the operator-facing fleet surface: CRUD, availability
// flips and the utilization report.
type VehicleService struct {
	vehicles vehicleAdminStore
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewVehicleService wires the service.
func NewVehicleService(vehicles vehicleAdminStore, validate *validator.Validate, logger *zap.Logger) *VehicleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VehicleService{vehicles: vehicles, validate: validate, logger: logger, now: time.Now}
}

// List returns vehicles matching the filter with pagination metadata.
func (s *VehicleService) List(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, *models.Pagination, error) {
	vehicles, total, err := s.vehicles.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vehicles")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return vehicles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one vehicle.
func (s *VehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	vehicle, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}
	return vehicle, nil
}

// Create registers a new vehicle.
func (s *VehicleService) Create(ctx context.Context, req dto.CreateVehicleRequest) (*models.Vehicle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vehicle")
	}
	class := models.VehicleClass(req.Class)
	if !class.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown vehicle class %q", req.Class))
	}

	vehicle := &models.Vehicle{
		Registration: req.Registration,
		Model:        req.Model,
		Class:        class,
		Available:    true,
	}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create vehicle")
	}
	return vehicle, nil
}

// Update modifies a vehicle's registration, model or class.
func (s *VehicleService) Update(ctx context.Context, id string, req dto.UpdateVehicleRequest) (*models.Vehicle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vehicle update")
	}

	vehicle, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Registration != nil {
		vehicle.Registration = *req.Registration
	}
	if req.Model != nil {
		vehicle.Model = *req.Model
	}
	if req.Class != nil {
		class := models.VehicleClass(*req.Class)
		if !class.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown vehicle class %q", *req.Class))
		}
		vehicle.Class = class
	}

	if err := s.vehicles.Update(ctx, vehicle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update vehicle")
	}
	return vehicle, nil
}

// SetAvailability flips the operator maintenance flag. Existing allocations
// are untouched; only future suggestions see the change.
func (s *VehicleService) SetAvailability(ctx context.Context, id string, available bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.vehicles.SetAvailability(ctx, id, available); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set vehicle availability")
	}
	return nil
}

// Delete removes a vehicle from the fleet.
func (s *VehicleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.vehicles.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete vehicle")
	}
	return nil
}

// UtilizationReport summarises each available vehicle's allocation load
// over the last 30 days against a nominal eight-slots-per-day capacity.
func (s *VehicleService) UtilizationReport(ctx context.Context) ([]models.VehicleUtilization, error) {
	vehicles, err := s.vehicles.ListAvailable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vehicles")
	}

	since := dateOnly(s.now()).AddDate(0, 0, -utilizationWindowDays)
	capacity := float64(utilizationWindowDays * slotsPerDay)

	report := make([]models.VehicleUtilization, 0, len(vehicles))
	for _, vehicle := range vehicles {
		count, err := s.vehicles.CountAllocationsSince(ctx, vehicle.ID, since)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count allocations")
		}
		pct := float64(count) / capacity * 100
		report = append(report, models.VehicleUtilization{
			Vehicle:       vehicle,
			RecentLessons: count,
			Utilization:   pct,
			Band:          utilizationBand(pct),
		})
	}
	return report, nil
}

func utilizationBand(pct float64) string {
	switch {
	case pct >= utilizationHigh:
		return "High"
	case pct >= utilizationMedium:
		return "Medium"
	default:
		return "Low"
	}
}
