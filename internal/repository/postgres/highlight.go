package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// PostgresHighlightRepository implements the HighlightRepository interface
type PostgresHighlightRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewHighlightRepository creates a new highlight repository
func NewHighlightRepository(config *RepositoryConfig) repositories.HighlightRepository {
	return &PostgresHighlightRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// AppendCapped inserts highlights and trims the project's set to max in one
// transaction. A per-project advisory lock serializes concurrent turns so
// the trim sees every insert.
func (r *PostgresHighlightRepository) AppendCapped(ctx context.Context, projectID string, highlights []models.Highlight, max int) error {
	if len(highlights) == 0 {
		return nil
	}

	fn := func(ctx context.Context) error {
		db := GetExecutor(ctx, r.pool)

		if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "highlights:"+projectID); err != nil {
			return fmt.Errorf("lock highlights: %w", err)
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (id, project_id, type, match_text, comment, suggested_edit, dismissed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, r.tables.Highlights)

		batch := &pgx.Batch{}
		for i := range highlights {
			h := &highlights[i]
			if h.ID == "" {
				h.ID = uuid.NewString()
			}
			if h.CreatedAt.IsZero() {
				h.CreatedAt = time.Now().UTC()
			}
			batch.Queue(insert, h.ID, projectID, h.Type, h.MatchText, h.Comment, h.SuggestedEdit, h.Dismissed, h.CreatedAt)
		}
		tx := repositories.GetTx(ctx)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if IsPgForeignKeyError(err) {
				return notFoundOr(err, "project", projectID, "insert highlights")
			}
			return fmt.Errorf("insert highlights: %w", err)
		}

		trim := fmt.Sprintf(`
			DELETE FROM %[1]s
			WHERE project_id = $1 AND id IN (
				SELECT id FROM %[1]s
				WHERE project_id = $1
				ORDER BY created_at DESC, id DESC
				OFFSET $2
			)
		`, r.tables.Highlights)
		tag, err := db.Exec(ctx, trim, projectID, max)
		if err != nil {
			return fmt.Errorf("trim highlights: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			r.logger.Debug("evicted old highlights", "project_id", projectID, "count", n)
		}
		return nil
	}

	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}
	return execTx(ctx, r.pool, r.logger, fn)
}

// List returns stored highlights, oldest first
func (r *PostgresHighlightRepository) List(ctx context.Context, projectID string) ([]models.Highlight, error) {
	query := fmt.Sprintf(`
		SELECT id, type, match_text, comment, suggested_edit, dismissed, created_at
		FROM %s
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC
	`, r.tables.Highlights)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	highlights := []models.Highlight{}
	for rows.Next() {
		var h models.Highlight
		if err := rows.Scan(&h.ID, &h.Type, &h.MatchText, &h.Comment, &h.SuggestedEdit, &h.Dismissed, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan highlight: %w", err)
		}
		highlights = append(highlights, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate highlights: %w", err)
	}

	return highlights, nil
}
