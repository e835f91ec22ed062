package storage

import (
	"context"
	"database/sql"

	"fintrack/internal/core"
)

type notificationStore struct{ q DBTX }

// Save ignores a second notification for the same event.
func (s notificationStore) Save(ctx context.Context, n core.Notification) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO notifications (id, owner_id, event_id, type, title, message, read, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		n.ID, n.OwnerID, n.EventID, string(n.Type), n.Title, n.Message, n.Read, formatTime(n.CreatedAt))
	if err != nil {
		return classify("save notification", err)
	}
	return nil
}

// ListByOwner returns newest first.
func (s notificationStore) ListByOwner(ctx context.Context, ownerID string, unreadOnly bool) ([]core.Notification, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, event_id, type, title, message, read, created_at
		FROM notifications
		WHERE owner_id = ? AND (? = 0 OR read = 0)
		ORDER BY created_at DESC, rowid DESC`, ownerID, unreadOnly)
	if err != nil {
		return nil, classify("list notifications", err)
	}
	out, err := collect(rows, scanNotification)
	if err != nil {
		return nil, classify("list notifications", err)
	}
	return out, nil
}

func (s notificationStore) MarkRead(ctx context.Context, ownerID, id string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return classify("mark notification read", err)
	}
	return affected(res, "notification", id)
}

func scanNotification(sc scanner) (core.Notification, error) {
	var (
		n       core.Notification
		eventID sql.NullString
		typ     string
		created string
	)
	if err := sc.Scan(&n.ID, &n.OwnerID, &eventID, &typ, &n.Title, &n.Message, &n.Read, &created); err != nil {
		return core.Notification{}, err
	}
	n.EventID = eventID.String
	n.Type = core.EventType(typ)
	var err error
	if n.CreatedAt, err = parseTime(created); err != nil {
		return core.Notification{}, err
	}
	return n, nil
}
