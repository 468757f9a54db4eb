package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roadready/driveschool-api/internal/service"
	"github.com/roadready/driveschool-api/pkg/response"
)

// TimetableHandler triggers bulk timetable generation.
type TimetableHandler struct {
	generator *service.TimetableGenerator
	metrics   *service.Metrics
}

// NewTimetableHandler creates the handler. metrics may be nil.
func NewTimetableHandler(generator *service.TimetableGenerator, metrics *service.Metrics) *TimetableHandler {
	return &TimetableHandler{generator: generator, metrics: metrics}
}

// Generate godoc
// @Summary Generate a default timetable
// @Description Books one default slot per active student per upcoming weekday with a randomly assigned tutor. Occupied slots are skipped.
// @Tags timetable
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.TimetableRunResult}
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	result, err := h.generator.Generate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.TimetableCreated(result.Created)
	}
	response.JSON(c, http.StatusOK, result, nil)
}
