package repository

import (
	"context"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// SaveNotification stores a notification.
func (r *SQLRepository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		n.ID, n.UserID, n.Title, n.Message, n.Type, boolToInt(n.Read), fmtTime(n.CreatedAt),
	)
	return err
}

// ListNotifications retrieves a user's notifications, newest first.
func (r *SQLRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, title, message, type, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		var read int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &read, &createdAt); err != nil {
			return nil, err
		}
		n.Read = read == 1
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags a notification as read.
func (r *SQLRepository) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`UPDATE notifications SET read = 1 WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return notFoundIfNoRows(result)
}

// HasRecentNotification reports whether a matching notification exists since the given time.
func (r *SQLRepository) HasRecentNotification(ctx context.Context, userID, typ, fragment string, since time.Time) (bool, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND type = ? AND message LIKE ? AND created_at >= ?
	`
	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query),
		userID, typ, "%"+fragment+"%", fmtTime(since),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
