package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fairdice/internal/model"
)

const notificationColumns = "id, user_id, message_key, message_params, category, is_read, priority, created_at"

// NotificationRepository is the durable, append-only notification log.
// Rows are never updated except to flip the read flag.
type NotificationRepository struct {
	db DB
}

// NewNotificationRepository creates a new NotificationRepository instance.
func NewNotificationRepository(db DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *NotificationRepository) WithTx(tx pgx.Tx) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n      model.Notification
		params []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Key, &params, &n.Category, &n.IsRead, &n.Priority, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &n.Params); err != nil {
			return nil, fmt.Errorf("invalid notification params: %w", err)
		}
	}
	return &n, nil
}

// Create appends a notification. No dedup, no delivery guarantee.
func (r *NotificationRepository) Create(ctx context.Context, userID int64, key string, params map[string]any, category string, priority bool) (*model.Notification, error) {
	if params == nil {
		params = map[string]any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification params: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO notifications (user_id, message_key, message_params, category, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING %s
	`, notificationColumns)

	n, err := scanNotification(r.db.QueryRow(ctx, query, userID, key, encoded, category, priority))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// MarkRead flips the read flag. The only permitted mutation.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ListUnread retrieves a user's unread notifications, priority first, then
// newest first.
func (r *NotificationRepository) ListUnread(ctx context.Context, userID int64, limit int) ([]*model.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE user_id = $1 AND is_read = FALSE
		ORDER BY priority DESC, created_at DESC, id DESC
		LIMIT $2
	`, notificationColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}
