package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/internal/service"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
	"github.com/roadready/driveschool-api/pkg/response"
)

// VehicleHandler exposes fleet administration over HTTP.
type VehicleHandler struct {
	vehicles *service.VehicleService
}

// NewVehicleHandler creates the handler.
func NewVehicleHandler(vehicles *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles}
}

// List godoc
// @Summary List vehicles
// @Tags vehicles
// @Produce json
// @Param class query string false "Filter by vehicle class"
// @Param available query bool false "Filter by availability"
// @Success 200 {object} response.Envelope{data=[]models.Vehicle}
// @Router /vehicles [get]
func (h *VehicleHandler) List(c *gin.Context) {
	filter := models.VehicleFilter{
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", 20),
	}
	if raw := c.Query("class"); raw != "" {
		class := models.VehicleClass(raw)
		if !class.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown vehicle class"))
			return
		}
		filter.Class = &class
	}
	if raw := c.Query("available"); raw != "" {
		available := boolQuery(c, "available")
		filter.Available = &available
	}

	vehicles, pagination, err := h.vehicles.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicles, pagination)
}

// Get godoc
// @Summary Get a vehicle
// @Tags vehicles
// @Produce json
// @Param id path string true "Vehicle ID"
// @Success 200 {object} response.Envelope{data=models.Vehicle}
// @Failure 404 {object} response.Envelope
// @Router /vehicles/{id} [get]
func (h *VehicleHandler) Get(c *gin.Context) {
	vehicle, err := h.vehicles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicle, nil)
}

// Create godoc
// @Summary Register a vehicle
// @Tags vehicles
// @Accept json
// @Produce json
// @Param request body dto.CreateVehicleRequest true "Vehicle"
// @Success 201 {object} response.Envelope{data=models.Vehicle}
// @Router /vehicles [post]
func (h *VehicleHandler) Create(c *gin.Context) {
	var req dto.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	vehicle, err := h.vehicles.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vehicle)
}

// Update godoc
// @Summary Update a vehicle
// @Tags vehicles
// @Accept json
// @Produce json
// @Param id path string true "Vehicle ID"
// @Param request body dto.UpdateVehicleRequest true "Fields to update"
// @Success 200 {object} response.Envelope{data=models.Vehicle}
// @Router /vehicles/{id} [put]
func (h *VehicleHandler) Update(c *gin.Context) {
	var req dto.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	vehicle, err := h.vehicles.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicle, nil)
}

// SetAvailability godoc
// @Summary Set vehicle availability
// @Description Flips the operator maintenance flag. Existing allocations are untouched.
// @Tags vehicles
// @Accept json
// @Param id path string true "Vehicle ID"
// @Param request body dto.SetVehicleAvailabilityRequest true "Availability"
// @Success 204
// @Router /vehicles/{id}/availability [patch]
func (h *VehicleHandler) SetAvailability(c *gin.Context) {
	var req dto.SetVehicleAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	if err := h.vehicles.SetAvailability(c.Request.Context(), c.Param("id"), *req.Available); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Remove a vehicle
// @Tags vehicles
// @Param id path string true "Vehicle ID"
// @Success 204
// @Router /vehicles/{id} [delete]
func (h *VehicleHandler) Delete(c *gin.Context) {
	if err := h.vehicles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Utilization godoc
// @Summary Vehicle utilization report
// @Description Allocation load per available vehicle over the last 30 days.
// @Tags vehicles
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.VehicleUtilization}
// @Router /vehicles/utilization [get]
func (h *VehicleHandler) Utilization(c *gin.Context) {
	report, err := h.vehicles.UtilizationReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
