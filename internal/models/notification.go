package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType values written by the server.
const (
	NotifyConnectionRequest  = "connection_request"
	NotifyConnectionAccepted = "connection_accepted"
	NotifyProjectRequest     = "project_request"
	NotifyProjectAccepted    = "project_accepted"
	NotifyProjectRejected    = "project_rejected"
)

type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
