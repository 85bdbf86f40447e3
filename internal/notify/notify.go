// Package notify persists in-portal notifications and announces them on the event bus.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
)

// DefaultListLimit caps notification listings.
const DefaultListLimit = 50

// Service is the notification sink.
type Service struct {
	store domain.NotificationStore
	bus   domain.EventBus
	now   func() time.Time
}

// NewService creates a notification service. bus may be nil.
func NewService(store domain.NotificationStore, eventBus domain.EventBus) *Service {
	return &Service{store: store, bus: eventBus, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Notify stores a notification for userID and publishes it on heron.notification.
// A publish failure is logged and does not fail the call.
func (s *Service) Notify(ctx context.Context, userID, title, message, typ string) (*domain.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: notification recipient is required", domain.ErrInvalidInput)
	}

	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	if s.bus != nil {
		if err := bus.PublishJSON(ctx, s.bus, domain.TopicNotification, n); err != nil {
			slog.Warn("notification publish failed", "notification_id", n.ID, "error", err)
		}
	}
	return n, nil
}

// Send is the fire-and-forget form of Notify: failures are logged, never returned.
// An empty userID is a no-op.
func (s *Service) Send(ctx context.Context, userID, title, message, typ string) {
	if userID == "" {
		return
	}
	if _, err := s.Notify(ctx, userID, title, message, typ); err != nil {
		slog.Error("notification failed",
			"user_id", userID,
			"title", title,
			"error", err,
		)
	}
}

// List returns a user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.store.ListNotifications(ctx, userID, limit)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrInvalidInput)
	}
	return s.store.MarkNotificationRead(ctx, id)
}

// SentRecently reports whether userID got a notification of typ mentioning fragment
// within the trailing window.
func (s *Service) SentRecently(ctx context.Context, userID, typ, fragment string, window time.Duration) (bool, error) {
	return s.store.HasRecentNotification(ctx, userID, typ, fragment, s.now().UTC().Add(-window))
}
