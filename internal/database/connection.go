package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

const connectionColumns = `id, sender_id, receiver_id, status::text, created_at, updated_at`

func scanConnection(row pgx.Row) (*models.Connection, error) {
	var (
		c      models.Connection
		status string
	)
	if err := row.Scan(&c.ID, &c.SenderID, &c.ReceiverID, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = models.Status(status)
	return &c, nil
}

// InsertConnectionRequest creates a pending request from sender to receiver.
// Any existing row between the pair, in either direction and any status, yields ErrDuplicate.
func InsertConnectionRequest(ctx context.Context, sender, receiver uuid.UUID) (*models.Connection, error) {
	var out *models.Connection
	err := withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM connections
				WHERE (sender_id = $1 AND receiver_id = $2)
				   OR (sender_id = $2 AND receiver_id = $1)
			)`, sender, receiver).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}

		c, err := scanConnection(tx.QueryRow(ctx, `
			INSERT INTO connections (sender_id, receiver_id, status)
			VALUES ($1, $2, 'pending')
			RETURNING `+connectionColumns, sender, receiver))
		out = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	c, err := scanConnection(DB.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

// RespondConnection moves a pending request addressed to receiver into status.
// It returns the updated row and the row as it was before.
func RespondConnection(ctx context.Context, id, receiver uuid.UUID, status models.Status) (*models.Connection, *models.Connection, error) {
	var before, after *models.Connection
	err := withTx(ctx, func(tx pgx.Tx) error {
		c, err := scanConnection(tx.QueryRow(ctx,
			`SELECT `+connectionColumns+` FROM connections WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if c.ReceiverID != receiver {
			return ErrForbidden
		}
		if c.Status != models.StatusPending {
			return ErrConflict
		}
		before = c

		after, err = scanConnection(tx.QueryRow(ctx, `
			UPDATE connections SET status = $2::connection_status, updated_at = NOW()
			WHERE id = $1
			RETURNING `+connectionColumns, id, string(status)))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return after, before, nil
}

// RemoveConnection hard deletes a connection. The sender may cancel a pending request;
// either party may remove an accepted connection.
func RemoveConnection(ctx context.Context, id, caller uuid.UUID) (*models.Connection, error) {
	var removed *models.Connection
	err := withTx(ctx, func(tx pgx.Tx) error {
		c, err := scanConnection(tx.QueryRow(ctx,
			`SELECT `+connectionColumns+` FROM connections WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := CanRemoveConnection(*c, caller); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
			return err
		}
		removed = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CanRemoveConnection applies the delete guard.
func CanRemoveConnection(c models.Connection, caller uuid.UUID) error {
	switch {
	case !c.Involves(caller):
		return ErrForbidden
	case c.Status == models.StatusAccepted:
		return nil
	case c.Status == models.StatusPending && c.SenderID == caller:
		return nil
	case c.Status == models.StatusPending:
		return ErrForbidden
	default:
		return ErrConflict
	}
}

// ListConnections returns every row involving userID together with the other party's summary.
func ListConnections(ctx context.Context, userID uuid.UUID) (*models.ConnectionLists, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+connectionColumns+`
		FROM connections
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []models.Connection
	ids := []uuid.UUID{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
		ids = append(ids, c.Other(userID))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles, err := GetProfileSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	return SplitConnections(userID, conns, profiles), nil
}

// SplitConnections buckets conns into received pending, sent pending and accepted.
// Rejected rows are dropped.
func SplitConnections(userID uuid.UUID, conns []models.Connection, profiles map[uuid.UUID]models.ProfileSummary) *models.ConnectionLists {
	out := &models.ConnectionLists{
		Pending:  []models.ConnectionWithProfile{},
		Sent:     []models.ConnectionWithProfile{},
		Accepted: []models.ConnectionWithProfile{},
	}
	for _, c := range conns {
		other := c.Other(userID)
		summary, ok := profiles[other]
		if !ok {
			summary = models.ProfileSummary{UserID: other, Name: models.UnknownUserName}
		}
		item := models.ConnectionWithProfile{Connection: c, Profile: summary}

		switch {
		case c.Status == models.StatusAccepted:
			out.Accepted = append(out.Accepted, item)
		case c.Status == models.StatusPending && c.ReceiverID == userID:
			out.Pending = append(out.Pending, item)
		case c.Status == models.StatusPending:
			out.Sent = append(out.Sent, item)
		}
	}
	return out
}

func CountAcceptedConnections(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM connections
		WHERE (sender_id = $1 OR receiver_id = $1) AND status = 'accepted'`, userID).Scan(&n)
	return n, err
}
