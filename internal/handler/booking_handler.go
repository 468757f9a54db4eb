package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/middleware"
	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/internal/service"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
	"github.com/roadready/driveschool-api/pkg/response"
)

type bookingEngine interface {
	Book(ctx context.Context, req dto.BookLessonRequest) (*dto.BookingOutcome, error)
	Reschedule(ctx context.Context, lessonID string, req dto.RescheduleLessonRequest) (*dto.RescheduleOutcome, error)
	Cancel(ctx context.Context, lessonID string) error
	Get(ctx context.Context, lessonID string) (*models.Lesson, error)
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error)
	SuggestVehicles(ctx context.Context, query dto.SuggestVehiclesQuery) ([]models.VehicleSuggestion, error)
	SuggestTimes(ctx context.Context, query dto.SuggestTimesQuery) ([]dto.TimeSlotSuggestion, error)
}

// BookingHandler exposes the lesson lifecycle over HTTP.
type BookingHandler struct {
	engine bookingEngine
}

// NewBookingHandler creates the handler.
func NewBookingHandler(engine bookingEngine) *BookingHandler {
	return &BookingHandler{engine: engine}
}

// Book godoc
// @Summary Book a lesson
// @Description Books a lesson for a student with a tutor, allocating a vehicle when one is free.
// @Tags lessons
// @Accept json
// @Produce json
// @Param request body dto.BookLessonRequest true "Booking request"
// @Success 201 {object} response.Envelope{data=dto.BookingOutcome}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons [post]
func (h *BookingHandler) Book(c *gin.Context) {
	var req dto.BookLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	// Students book for themselves; only admins may book on behalf.
	if role, ok := middleware.RoleFrom(c); ok && role == models.RoleStudent {
		if callerID, ok := middleware.UserIDFrom(c); ok {
			req.StudentID = callerID
		}
	}

	outcome, err := h.engine.Book(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// Get godoc
// @Summary Get a lesson
// @Tags lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope{data=models.Lesson}
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	lesson, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// List godoc
// @Summary List lessons
// @Tags lessons
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param tutor_id query string false "Filter by tutor"
// @Param date_from query string false "Earliest lesson date (YYYY-MM-DD)"
// @Param date_to query string false "Latest lesson date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.Lesson}
// @Router /lessons [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.LessonFilter{
		StudentID: c.Query("student_id"),
		TutorID:   c.Query("tutor_id"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("date_from"); raw != "" {
		date, err := service.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_from"))
			return
		}
		filter.DateFrom = &date
	}
	if raw := c.Query("date_to"); raw != "" {
		date, err := service.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_to"))
			return
		}
		filter.DateTo = &date
	}

	lessons, pagination, err := h.engine.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Reschedule godoc
// @Summary Reschedule a lesson
// @Description Moves a lesson to a new window. Any stale vehicle allocation is released and flagged.
// @Tags lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param request body dto.RescheduleLessonRequest true "New window"
// @Success 200 {object} response.Envelope{data=dto.RescheduleOutcome}
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	outcome, err := h.engine.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Cancel godoc
// @Summary Cancel a lesson
// @Description Cancels a lesson and releases its vehicle. Idempotent.
// @Tags lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /lessons/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	if err := h.engine.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SuggestVehicles godoc
// @Summary Suggest vehicles for a window
// @Tags lessons
// @Accept json
// @Produce json
// @Param request body dto.SuggestVehiclesQuery true "Window and class"
// @Success 200 {object} response.Envelope{data=[]models.VehicleSuggestion}
// @Router /lessons/suggest-vehicles [post]
func (h *BookingHandler) SuggestVehicles(c *gin.Context) {
	var query dto.SuggestVehiclesQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	suggestions, err := h.engine.SuggestVehicles(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}

// SuggestTimes godoc
// @Summary Suggest open lesson times
// @Tags lessons
// @Produce json
// @Param tutor_id query string true "Tutor ID"
// @Param student_id query string true "Student ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=[]dto.TimeSlotSuggestion}
// @Router /lessons/suggest-times [get]
func (h *BookingHandler) SuggestTimes(c *gin.Context) {
	query := dto.SuggestTimesQuery{
		TutorID:   c.Query("tutor_id"),
		StudentID: c.Query("student_id"),
		Date:      c.Query("date"),
	}

	suggestions, err := h.engine.SuggestTimes(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}
