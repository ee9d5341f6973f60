package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Content   string         `json:"content"`
	ImageURL  string         `json:"image_url,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Author    ProfileSummary `json:"author"`
}

// DashboardStats are the counters shown on the dashboard.
type DashboardStats struct {
	Connections         int `json:"connections"`
	ProjectsCreated     int `json:"projects_created"`
	ProjectsJoined      int `json:"projects_joined"`
	UnreadNotifications int `json:"unread_notifications"`
}
