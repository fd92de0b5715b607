package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a notification does not exist for the user.
var ErrNotFound = errors.New("notify: notification not found")

// Store persists notifications.
type Store interface {
	InsertNotification(ctx context.Context, n Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Listed, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// Listed is a stored notification with read state.
type Listed struct {
	Notification
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

// PGStore implements Store on the notifications table.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertNotification implements Store.
func (s PGStore) InsertNotification(ctx context.Context, n Notification) error {
	data := n.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO notifications (user_id, type, title, message, data)
VALUES ($1, $2, $3, $4, $5)`, n.UserID, n.Type, n.Title, n.Message, data)
	return err
}

// ListForUser implements Store, newest first.
func (s PGStore) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Listed, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, user_id, type, title, message, data, is_read, to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
FROM notifications
WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
ORDER BY created_at DESC
LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Listed
	for rows.Next() {
		var l Listed
		if err := rows.Scan(&l.ID, &l.UserID, &l.Type, &l.Title, &l.Message, &l.Data, &l.IsRead, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MarkRead implements Store.
func (s PGStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
