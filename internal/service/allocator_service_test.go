package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/internal/repository"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
)

type fakeVehicleStore struct {
	available []models.Vehicle
	busy      []string

	allocations  []*models.VehicleAllocation
	failVehicles map[string]error
}

func (f *fakeVehicleStore) ListAvailable(_ context.Context) ([]models.Vehicle, error) {
	return f.available, nil
}

func (f *fakeVehicleStore) BusyVehicleIDs(_ context.Context, _ time.Time, _, _ string) ([]string, error) {
	return f.busy, nil
}

func (f *fakeVehicleStore) CreateAllocation(_ context.Context, alloc *models.VehicleAllocation) error {
	if err, ok := f.failVehicles[alloc.VehicleID]; ok {
		return err
	}
	f.allocations = append(f.allocations, alloc)
	return nil
}

func testFleet() []models.Vehicle {
	return []models.Vehicle{
		{ID: "v1", Registration: "AAA-111", Class: models.VehicleClass1, Available: true},
		{ID: "v2", Registration: "BBB-222", Class: models.VehicleClass2, Available: true},
		{ID: "v3", Registration: "CCC-333", Class: models.VehicleClass2, Available: true},
		{ID: "v4", Registration: "DDD-444", Class: models.VehicleClass3, Available: true},
	}
}

func TestSuggestTiersAndOrder(t *testing.T) {
	store := &fakeVehicleStore{available: testFleet()}
	allocator := NewVehicleAllocator(store, nil, nil)

	suggestions, err := allocator.Suggest(context.Background(), time.Now(), Window{600, 660}, models.VehicleClass2)
	require.NoError(t, err)
	require.Len(t, suggestions, 4)

	// Exact-class matches first, then the rest, both in roster order.
	assert.Equal(t, "v2", suggestions[0].Vehicle.ID)
	assert.Equal(t, models.TierPerfect, suggestions[0].Tier)
	assert.Equal(t, models.ConfidencePerfect, suggestions[0].Confidence)

	assert.Equal(t, "v3", suggestions[1].Vehicle.ID)
	assert.Equal(t, models.TierPerfect, suggestions[1].Tier)

	assert.Equal(t, "v1", suggestions[2].Vehicle.ID)
	assert.Equal(t, models.TierAlternative, suggestions[2].Tier)
	assert.Equal(t, models.ConfidenceAlternative, suggestions[2].Confidence)

	assert.Equal(t, "v4", suggestions[3].Vehicle.ID)
}

func TestSuggestSkipsBusyVehicles(t *testing.T) {
	store := &fakeVehicleStore{available: testFleet(), busy: []string{"v2", "v3"}}
	allocator := NewVehicleAllocator(store, nil, nil)

	suggestions, err := allocator.Suggest(context.Background(), time.Now(), Window{600, 660}, models.VehicleClass2)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, models.TierAlternative, suggestions[0].Tier)
	assert.Equal(t, models.TierAlternative, suggestions[1].Tier)
}

func TestAllocatePicksBestSuggestion(t *testing.T) {
	store := &fakeVehicleStore{available: testFleet()}
	allocator := NewVehicleAllocator(store, nil, nil)

	alloc, suggestion, err := allocator.Allocate(context.Background(), "lesson-1", time.Now(), Window{600, 660}, models.VehicleClass2)
	require.NoError(t, err)
	assert.Equal(t, "v2", alloc.VehicleID)
	assert.Equal(t, "lesson-1", alloc.LessonID)
	assert.Equal(t, "10:00", alloc.StartTime)
	assert.Equal(t, "11:00", alloc.EndTime)
	assert.Equal(t, models.TierPerfect, suggestion.Tier)
}

func TestAllocateRetriesAfterRace(t *testing.T) {
	store := &fakeVehicleStore{
		available: testFleet(),
		failVehicles: map[string]error{
			"v2": repository.ErrAllocationConflict,
		},
	}
	allocator := NewVehicleAllocator(store, nil, nil)

	alloc, _, err := allocator.Allocate(context.Background(), "lesson-1", time.Now(), Window{600, 660}, models.VehicleClass2)
	require.NoError(t, err)
	assert.Equal(t, "v3", alloc.VehicleID)
}

func TestAllocateNoVehicles(t *testing.T) {
	store := &fakeVehicleStore{available: testFleet(), busy: []string{"v1", "v2", "v3", "v4"}}
	allocator := NewVehicleAllocator(store, nil, nil)

	_, _, err := allocator.Allocate(context.Background(), "lesson-1", time.Now(), Window{600, 660}, models.VehicleClass2)
	assert.ErrorIs(t, err, appErrors.ErrNoVehicle)
}

func TestAllocateAllRacesLost(t *testing.T) {
	store := &fakeVehicleStore{
		available: testFleet(),
		failVehicles: map[string]error{
			"v1": repository.ErrAllocationConflict,
			"v2": repository.ErrAllocationConflict,
			"v3": repository.ErrAllocationConflict,
			"v4": repository.ErrAllocationConflict,
		},
	}
	allocator := NewVehicleAllocator(store, nil, nil)

	_, _, err := allocator.Allocate(context.Background(), "lesson-1", time.Now(), Window{600, 660}, models.VehicleClass2)
	assert.ErrorIs(t, err, appErrors.ErrNoVehicle)
}

func TestAllocateSurfacesStorageErrors(t *testing.T) {
	store := &fakeVehicleStore{
		available:    testFleet(),
		failVehicles: map[string]error{"v2": errors.New("connection reset")},
	}
	allocator := NewVehicleAllocator(store, nil, nil)

	_, _, err := allocator.Allocate(context.Background(), "lesson-1", time.Now(), Window{600, 660}, models.VehicleClass2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrNoVehicle)
}

func TestCountFree(t *testing.T) {
	store := &fakeVehicleStore{available: testFleet(), busy: []string{"v1"}}
	allocator := NewVehicleAllocator(store, nil, nil)

	count, err := allocator.CountFree(context.Background(), time.Now(), Window{600, 660})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
