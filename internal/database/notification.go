package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, link, is_read, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// InsertNotifications stores batch inside one transaction, filling ids and timestamps.
func InsertNotifications(ctx context.Context, batch []models.Notification) ([]models.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	out := make([]models.Notification, 0, len(batch))
	err := withTx(ctx, func(tx pgx.Tx) error {
		for _, n := range batch {
			if n.ID == uuid.Nil {
				n.ID = uuid.New()
			}
			stored, err := scanNotification(tx.QueryRow(ctx, `
				INSERT INTO notifications (id, user_id, type, title, message, link)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING `+notificationColumns,
				n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link))
			if err != nil {
				return err
			}
			out = append(out, *stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead flags one of userID's notifications as read.
func MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n, err := scanNotification(DB.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return n, nil
}

// MarkAllNotificationsRead returns the number of rows flipped.
func MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	ct, err := DB.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
