package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roadready/driveschool-api/internal/dto"
	"github.com/roadready/driveschool-api/internal/middleware"
	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/internal/service"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
	"github.com/roadready/driveschool-api/pkg/response"
)

// ProgressHandler exposes instructor feedback and student progress scoring.
type ProgressHandler struct {
	progress *service.ProgressService
}

// NewProgressHandler creates the handler.
func NewProgressHandler(progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// AddRecord godoc
// @Summary Record lesson feedback
// @Description Appends an instructor feedback record to a lesson. Tutors can only record on their own lessons.
// @Tags progress
// @Accept json
// @Produce json
// @Param request body dto.AddProgressRecordRequest true "Feedback"
// @Success 201 {object} response.Envelope{data=models.ProgressRecord}
// @Failure 403 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) AddRecord(c *gin.Context) {
	var req dto.AddProgressRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	// Admins may record on behalf of any tutor.
	tutorID := ""
	if role, ok := middleware.RoleFrom(c); ok && role == models.RoleTutor {
		tutorID, _ = middleware.UserIDFrom(c)
	}

	record, err := h.progress.AddRecord(c.Request.Context(), tutorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Records godoc
// @Summary Student feedback history
// @Tags progress
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=[]models.ProgressRecord}
// @Router /students/{id}/progress [get]
func (h *ProgressHandler) Records(c *gin.Context) {
	records, err := h.progress.RecordsForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Score godoc
// @Summary Student progress score
// @Description Deterministic 0-100 score derived from lesson frequency and latest feedback.
// @Tags progress
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=models.ProgressScore}
// @Router /students/{id}/progress/score [get]
func (h *ProgressHandler) Score(c *gin.Context) {
	score, err := h.progress.Score(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Report godoc
// @Summary Student progress report
// @Description Full report payload for the external exporter: statistics, score and lesson history.
// @Tags progress
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=dto.ProgressReport}
// @Router /students/{id}/progress/report [get]
func (h *ProgressHandler) Report(c *gin.Context) {
	report, err := h.progress.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// SuggestComment godoc
// @Summary Draft feedback for a lesson
// @Tags progress
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope{data=string}
// @Router /lessons/{id}/suggest-comment [get]
func (h *ProgressHandler) SuggestComment(c *gin.Context) {
	comment, err := h.progress.SuggestComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"suggestion": comment}, nil)
}
