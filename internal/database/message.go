package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

const messageColumns = `id, sender_id, receiver_id, content, is_read, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()
	out := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func InsertMessage(ctx context.Context, sender, receiver uuid.UUID, content string) (*models.Message, error) {
	var out *models.Message
	err := withTx(ctx, func(tx pgx.Tx) error {
		m, err := scanMessage(tx.QueryRow(ctx, `
			INSERT INTO messages (sender_id, receiver_id, content)
			VALUES ($1, $2, $3)
			RETURNING `+messageColumns, sender, receiver, content))
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListUserMessages returns every message sent or received by userID, newest first.
func ListUserMessages(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// ListConversations groups userID's messages by partner.
func ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	msgs, err := ListUserMessages(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{}
	ids := []uuid.UUID{}
	for _, m := range msgs {
		partner := m.SenderID
		if partner == userID {
			partner = m.ReceiverID
		}
		if !seen[partner] {
			seen[partner] = true
			ids = append(ids, partner)
		}
	}

	profiles, err := GetProfileSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	return models.BuildConversations(userID, msgs, profiles), nil
}

// ListThread returns the messages between a and b in ascending order.
func ListThread(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC`, a, b)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MarkThreadRead flags every unread message from partner to reader as read and returns the updated rows.
func MarkThreadRead(ctx context.Context, reader, partner uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	err := withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE messages SET is_read = TRUE
			WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read
			RETURNING `+messageColumns, reader, partner)
		if err != nil {
			return err
		}
		out, err = collectMessages(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func CountUnreadMessages(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}
