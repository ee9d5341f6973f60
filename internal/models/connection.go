package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is shared by connections and project memberships.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Connection is a directed request between two users.
type Connection struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Other returns the party of c that is not userID.
func (c Connection) Other(userID uuid.UUID) uuid.UUID {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// Involves reports whether userID is the sender or the receiver.
func (c Connection) Involves(userID uuid.UUID) bool {
	return c.SenderID == userID || c.ReceiverID == userID
}

// ConnectionWithProfile pairs a connection with the other party's summary.
type ConnectionWithProfile struct {
	Connection
	Profile ProfileSummary `json:"profile"`
}

// ConnectionLists is what the connections page renders.
type ConnectionLists struct {
	Pending  []ConnectionWithProfile `json:"pending"`
	Sent     []ConnectionWithProfile `json:"sent"`
	Accepted []ConnectionWithProfile `json:"accepted"`
}
