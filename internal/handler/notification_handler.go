package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roadready/driveschool-api/internal/middleware"
	"github.com/roadready/driveschool-api/internal/service"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
	"github.com/roadready/driveschool-api/pkg/response"
)

// NotificationHandler exposes a user's notification feed.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates the handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary List my notifications
// @Tags notifications
// @Produce json
// @Param unread query bool false "Unread only"
// @Success 200 {object} response.Envelope{data=[]models.Notification}
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	notifications, err := h.notifications.ListForUser(c.Request.Context(), userID, boolQuery(c, "unread"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
