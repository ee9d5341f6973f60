package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/campus/internal/models"
)

func CreatePost(ctx context.Context, userID uuid.UUID, content, imageURL string) (*models.Post, error) {
	p := models.Post{UserID: userID, Content: content, ImageURL: imageURL}
	err := withTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO posts (user_id, content, image_url)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`, userID, content, imageURL).Scan(&p.ID, &p.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns the newest limit posts with their authors.
func ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	rows, err := DB.Query(ctx, `
		SELECT id, user_id, content, image_url, created_at
		FROM posts
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Post{}
	ids := []uuid.UUID{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
		ids = append(ids, p.UserID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles, err := GetProfileSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if s, ok := profiles[out[i].UserID]; ok {
			out[i].Author = s
		} else {
			out[i].Author = models.ProfileSummary{UserID: out[i].UserID, Name: models.UnknownUserName}
		}
	}
	return out, nil
}

// GetDashboardStats gathers the dashboard counters.
func GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	var (
		s   models.DashboardStats
		err error
	)
	if s.Connections, err = CountAcceptedConnections(ctx, userID); err != nil {
		return nil, err
	}
	if s.ProjectsCreated, err = CountProjectsCreated(ctx, userID); err != nil {
		return nil, err
	}
	if s.ProjectsJoined, err = CountProjectsJoined(ctx, userID); err != nil {
		return nil, err
	}
	if s.UnreadNotifications, err = CountUnreadNotifications(ctx, userID); err != nil {
		return nil, err
	}
	return &s, nil
}
