package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// PostgresUsageRepository implements the UsageRepository interface
type PostgresUsageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewUsageRepository creates a new usage ledger repository
func NewUsageRepository(config *RepositoryConfig) repositories.UsageRepository {
	return &PostgresUsageRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// CountSince counts ledger entries in [since, now]
func (r *PostgresUsageRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s
		WHERE user_id = $1 AND created_at >= $2
	`, r.tables.UsageEvents)

	var n int
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return n, nil
}

// Record appends one ledger entry
func (r *PostgresUsageRepository) Record(ctx context.Context, entry *models.UsageEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, project_id, message_id, model, input_tokens, output_tokens, rounds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.tables.UsageEvents)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ProjectID,
		entry.MessageID,
		entry.Model,
		entry.InputTokens,
		entry.OutputTokens,
		entry.Rounds,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}
