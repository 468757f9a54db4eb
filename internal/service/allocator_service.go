package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/internal/repository"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type vehicleAllocationStore interface {
	ListAvailable(ctx context.Context) ([]models.Vehicle, error)
	BusyVehicleIDs(ctx context.Context, date time.Time, start, end string) ([]string, error)
	CreateAllocation(ctx context.Context, alloc *models.VehicleAllocation) error
}

type allocationMetrics interface {
	AllocationRetry()
}

// VehicleAllocator ranks candidate vehicles for a lesson window and commits
// a reservation. Races on the storage constraint are retried against the
// remaining suggestions before degrading to no-vehicle.
type VehicleAllocator struct {
	vehicles vehicleAllocationStore
	metrics  allocationMetrics
	logger   *zap.Logger
}

// NewVehicleAllocator wires allocator dependencies.
func NewVehicleAllocator(vehicles vehicleAllocationStore, metrics allocationMetrics, logger *zap.Logger) *VehicleAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VehicleAllocator{vehicles: vehicles, metrics: metrics, logger: logger}
}

// Suggest partitions the free vehicles into an exact-class PERFECT tier and
// an any-class ALTERNATIVE tier, preserving the stable roster order within
// each tier. Confidence is a fixed presentation heuristic per tier.
func (a *VehicleAllocator) Suggest(ctx context.Context, date time.Time, window Window, class models.VehicleClass) ([]models.VehicleSuggestion, error) {
	free, err := a.freeVehicles(ctx, date, window)
	if err != nil {
		return nil, err
	}

	perfect, alternative := lo.FilterReject(free, func(v models.Vehicle, _ int) bool {
		return v.Class == class
	})

	suggestions := make([]models.VehicleSuggestion, 0, len(free))
	for _, vehicle := range perfect {
		suggestions = append(suggestions, models.VehicleSuggestion{
			Vehicle:    vehicle,
			Tier:       models.TierPerfect,
			Confidence: models.ConfidencePerfect,
			Reason:     fmt.Sprintf("Ideal for %s lessons", vehicle.Class),
		})
	}
	for _, vehicle := range alternative {
		suggestions = append(suggestions, models.VehicleSuggestion{
			Vehicle:    vehicle,
			Tier:       models.TierAlternative,
			Confidence: models.ConfidenceAlternative,
			Reason:     fmt.Sprintf("Available %s vehicle", vehicle.Class),
		})
	}
	return suggestions, nil
}

// CountFree returns how many vehicles could serve the window.
func (a *VehicleAllocator) CountFree(ctx context.Context, date time.Time, window Window) (int, error) {
	free, err := a.freeVehicles(ctx, date, window)
	if err != nil {
		return 0, err
	}
	return len(free), nil
}

// Allocate reserves the best-fitting vehicle for a lesson. When a
// suggestion loses the storage-layer race it moves on to the next one;
// only an exhausted list degrades to ErrNoVehicle.
func (a *VehicleAllocator) Allocate(ctx context.Context, lessonID string, date time.Time, window Window, class models.VehicleClass) (*models.VehicleAllocation, *models.VehicleSuggestion, error) {
	suggestions, err := a.Suggest(ctx, date, window, class)
	if err != nil {
		return nil, nil, err
	}
	if len(suggestions) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNoVehicle, "")
	}

	for i := range suggestions {
		suggestion := suggestions[i]
		alloc := &models.VehicleAllocation{
			LessonID:  lessonID,
			VehicleID: suggestion.Vehicle.ID,
			Date:      date,
			StartTime: window.StartClock(),
			EndTime:   window.EndClock(),
		}
		err := a.vehicles.CreateAllocation(ctx, alloc)
		if err == nil {
			return alloc, &suggestion, nil
		}
		if errors.Is(err, repository.ErrAllocationConflict) {
			if a.metrics != nil {
				a.metrics.AllocationRetry()
			}
			a.logger.Warn("vehicle reservation lost race, trying next suggestion",
				zap.String("lesson_id", lessonID),
				zap.String("vehicle_id", suggestion.Vehicle.ID))
			continue
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve vehicle")
	}

	return nil, nil, appErrors.Clone(appErrors.ErrNoVehicle, "all candidate vehicles were taken by concurrent bookings")
}

func (a *VehicleAllocator) freeVehicles(ctx context.Context, date time.Time, window Window) ([]models.Vehicle, error) {
	available, err := a.vehicles.ListAvailable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vehicles")
	}
	busyIDs, err := a.vehicles.BusyVehicleIDs(ctx, date, window.StartClock(), window.EndClock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle reservations")
	}

	busy := lo.SliceToMap(busyIDs, func(id string) (string, struct{}) { return id, struct{}{} })
	free := lo.Filter(available, func(v models.Vehicle, _ int) bool {
		_, taken := busy[v.ID]
		return !taken
	})
	return free, nil
}
