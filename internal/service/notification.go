package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"fairdice/internal/model"
	"fairdice/internal/pubsub"
	"fairdice/internal/repository"
)

// NotificationBus appends user-facing events to the durable log and pushes
// them onto the broadcast channel. It never dedups and never guarantees
// delivery; transports downstream own that.
type NotificationBus struct {
	notifications *repository.NotificationRepository
	publisher     pubsub.Publisher
}

// NewNotificationBus creates a new NotificationBus instance.
func NewNotificationBus(notifications *repository.NotificationRepository, publisher pubsub.Publisher) *NotificationBus {
	return &NotificationBus{notifications: notifications, publisher: publisher}
}

// Create appends a notification and publishes it best effort.
func (b *NotificationBus) Create(ctx context.Context, userID int64, key string, params map[string]any, category string, priority bool) (*model.Notification, error) {
	n, err := b.notifications.Create(ctx, userID, key, params, category, priority)
	if err != nil {
		return nil, err
	}

	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, pubsub.ChannelNotifications, n); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("key", key).Msg("Failed to publish notification")
		}
	}

	return n, nil
}

// MarkRead flips the read flag on a notification.
func (b *NotificationBus) MarkRead(ctx context.Context, id int64) error {
	return b.notifications.MarkRead(ctx, id)
}

// Unread lists a user's unread notifications.
func (b *NotificationBus) Unread(ctx context.Context, userID int64, limit int) ([]*model.Notification, error) {
	return b.notifications.ListUnread(ctx, userID, limit)
}
