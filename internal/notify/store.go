package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationColumns = `id, recipient_id, kind, entity_id, title, message, read, created_at`

// Store persists notifications in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a notification store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanNotification(scan func(dest ...any) error) (*Notification, error) {
	var n Notification
	err := scan(&n.ID, &n.RecipientID, &n.Kind, &n.EntityID, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Insert stores a new unread notification.
func (s *Store) Insert(ctx context.Context, n *Notification) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, kind, entity_id, title, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		n.RecipientID, n.Kind, n.EntityID, n.Title, n.Message)

	stored, err := scanNotification(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}
	return stored, nil
}

// ListByRecipient returns a user's notifications, newest first. With
// unreadOnly set, read notifications are excluded.
func (s *Store) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.pool.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one of the recipient's notifications as read.
func (s *Store) MarkRead(ctx context.Context, id, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkAllRead marks every notification of the recipient as read.
func (s *Store) MarkAllRead(ctx context.Context, recipientID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE recipient_id = $1 AND read = false`, recipientID)
	if err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}
	return nil
}

// Delete removes one of the recipient's notifications.
func (s *Store) Delete(ctx context.Context, id, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountUnread returns the recipient's unread notification count.
func (s *Store) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE recipient_id = $1 AND read = false`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
