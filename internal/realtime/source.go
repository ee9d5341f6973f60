package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
)

// Source is the state reconcilers re-fetch after an event.
type Source interface {
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	Connections(ctx context.Context, userID uuid.UUID) (*models.ConnectionLists, error)
	Conversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	// MarkThreadRead marks partner's messages to reader as read and returns the rows changed.
	MarkThreadRead(ctx context.Context, reader, partner uuid.UUID) ([]models.Message, error)
}

// DatabaseSource reads from Postgres and publishes the updates it makes.
type DatabaseSource struct {
	Publisher Publisher
	Logger    *logrus.Logger
}

func (s DatabaseSource) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return database.CountUnreadMessages(ctx, userID)
}

func (s DatabaseSource) Connections(ctx context.Context, userID uuid.UUID) (*models.ConnectionLists, error) {
	return database.ListConnections(ctx, userID)
}

func (s DatabaseSource) Conversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return database.ListConversations(ctx, userID)
}

func (s DatabaseSource) MarkThreadRead(ctx context.Context, reader, partner uuid.UUID) ([]models.Message, error) {
	msgs, err := database.MarkThreadRead(ctx, reader, partner)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		old := m
		old.IsRead = false
		PublishChange(ctx, s.Publisher, s.Logger, "messages", Update, m, old)
	}
	return msgs, nil
}
