package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/pkg/config"
	appErrors "github.com/roadready/driveschool-api/pkg/errors"
	"github.com/roadready/driveschool-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}

type notifyPayload struct {
	UserID  string
	Message string
}

// NotificationService persists user notifications through a background
// queue so booking paths never wait on notification writes.
type NotificationService struct {
	store  notificationStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its dispatch queue. Call
// Start before enqueueing and Stop on shutdown.
func NewNotificationService(store notificationStore, cfg config.NotifyConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{store: store, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification for a user. Fire and forget: a full queue
// is logged and dropped rather than blocking the caller.
func (s *NotificationService) Notify(userID, message string) {
	job := jobs.Job{
		ID:       uuid.NewString(),
		Type:     "notification",
		Payload:  notifyPayload{UserID: userID, Message: message},
		Enqueued: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("dropping notification",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// ListForUser returns a user's notifications, optionally unread only.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := s.store.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags a notification as read. Marking someone else's notification
// surfaces as not-found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notifyPayload)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.store.Create(ctx, &models.Notification{
		UserID:  payload.UserID,
		Message: payload.Message,
	})
}
