package repositories

import (
	"context"

	"margin/internal/domain/models"
)

// MessageRepository stores a project's append-only conversation
type MessageRepository interface {
	// Append inserts a message. ID and CreatedAt are set if empty.
	Append(ctx context.Context, msg *models.ConversationMessage) error

	// ListRecent returns the newest limit messages in chronological order
	ListRecent(ctx context.Context, projectID string, limit int) ([]models.ConversationMessage, error)
}

// HighlightRepository stores a project's highlight set
type HighlightRepository interface {
	// AppendCapped atomically appends highlights and evicts the oldest
	// (by created_at, then id) beyond max
	AppendCapped(ctx context.Context, projectID string, highlights []models.Highlight, max int) error

	// List returns stored highlights, oldest first
	List(ctx context.Context, projectID string) ([]models.Highlight, error)
}
