package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// PostgresMessageRepository implements the MessageRepository interface
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Append inserts a message
func (r *PostgresMessageRepository) Append(ctx context.Context, msg *models.ConversationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, user_id, role, content, highlights, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Messages)

	// nil slices become NULL
	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		msg.ID,
		msg.ProjectID,
		msg.UserID,
		msg.Role,
		msg.Content,
		nullIfEmpty(msg.Highlights),
		nullIfEmpty(msg.Sources),
		msg.CreatedAt,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return notFoundOr(err, "project", msg.ProjectID, "append message")
		}
		return fmt.Errorf("append message: %w", err)
	}

	r.logger.Debug("message appended", "message_id", msg.ID, "project_id", msg.ProjectID, "role", msg.Role)
	return nil
}

// ListRecent returns the newest limit messages, oldest first
func (r *PostgresMessageRepository) ListRecent(ctx context.Context, projectID string, limit int) ([]models.ConversationMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, user_id, role, content, highlights, sources, created_at
		FROM (
			SELECT *
			FROM %s
			WHERE project_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, r.tables.Messages)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.ConversationMessage, 0, limit)
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(
			&m.ID,
			&m.ProjectID,
			&m.UserID,
			&m.Role,
			&m.Content,
			&m.Highlights, // pgx handles JSONB -> slice (NULL stays nil)
			&m.Sources,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func nullIfEmpty[T any](s []T) interface{} {
	if len(s) == 0 {
		return nil
	}
	return s
}
