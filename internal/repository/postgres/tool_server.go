package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// PostgresToolServerRepository implements the ToolServerRepository interface
type PostgresToolServerRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewToolServerRepository creates a new tool server repository
func NewToolServerRepository(config *RepositoryConfig) repositories.ToolServerRepository {
	return &PostgresToolServerRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const toolServerColumns = `id, user_id, name, url, headers, enabled, created_at, updated_at`

func scanToolServer(row interface{ Scan(...interface{}) error }) (*models.ToolServerConfig, error) {
	var cfg models.ToolServerConfig
	err := row.Scan(
		&cfg.ID,
		&cfg.OwnerID,
		&cfg.Name,
		&cfg.URL,
		&cfg.Headers, // pgx handles JSONB -> map
		&cfg.Enabled,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return &cfg, nil
}

// List returns the owner's servers
func (r *PostgresToolServerRepository) List(ctx context.Context, ownerID string) ([]models.ToolServerConfig, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, toolServerColumns, r.tables.ToolServers)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tool servers: %w", err)
	}
	defer rows.Close()

	servers := []models.ToolServerConfig{}
	for rows.Next() {
		cfg, err := scanToolServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool server: %w", err)
		}
		servers = append(servers, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool servers: %w", err)
	}

	return servers, nil
}

// Get returns one of the owner's servers
func (r *PostgresToolServerRepository) Get(ctx context.Context, ownerID, id string) (*models.ToolServerConfig, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = $1 AND user_id = $2
	`, toolServerColumns, r.tables.ToolServers)

	cfg, err := scanToolServer(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id, ownerID))
	if err != nil {
		return nil, notFoundOr(err, "tool server", id, "get tool server")
	}
	return cfg, nil
}

// Create inserts a server unless the owner already has max. A per-owner
// advisory lock serializes concurrent creates so the count sees every
// committed insert.
func (r *PostgresToolServerRepository) Create(ctx context.Context, cfg *models.ToolServerConfig, max int) error {
	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.CreatedAt, cfg.UpdatedAt = now, now

	fn := func(ctx context.Context) error {
		db := GetExecutor(ctx, r.pool)

		if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "tool_servers:"+cfg.OwnerID); err != nil {
			return fmt.Errorf("lock tool servers: %w", err)
		}

		if max > 0 {
			count := fmt.Sprintf(`SELECT count(*) FROM %s WHERE user_id = $1`, r.tables.ToolServers)
			var n int
			if err := db.QueryRow(ctx, count, cfg.OwnerID).Scan(&n); err != nil {
				return fmt.Errorf("count tool servers: %w", err)
			}
			if n >= max {
				return fmt.Errorf("owner has %d tool servers: %w", n, domain.ErrCapReached)
			}
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (id, user_id, name, url, headers, enabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.tables.ToolServers)

		_, err := db.Exec(ctx, insert,
			cfg.ID, cfg.OwnerID, cfg.Name, cfg.URL, headersOrEmpty(cfg.Headers), cfg.Enabled, cfg.CreatedAt, cfg.UpdatedAt)
		if err != nil {
			if IsPgDuplicateError(err) {
				return r.conflict(ctx, cfg.OwnerID, cfg.Name)
			}
			return fmt.Errorf("create tool server: %w", err)
		}
		return nil
	}

	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}
	return execTx(ctx, r.pool, r.logger, fn)
}

// Update overwrites a server's mutable fields
func (r *PostgresToolServerRepository) Update(ctx context.Context, cfg *models.ToolServerConfig) error {
	cfg.UpdatedAt = time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $3, url = $4, headers = $5, enabled = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2
	`, r.tables.ToolServers)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		cfg.ID, cfg.OwnerID, cfg.Name, cfg.URL, headersOrEmpty(cfg.Headers), cfg.Enabled, cfg.UpdatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return r.conflict(ctx, cfg.OwnerID, cfg.Name)
		}
		return notFoundOr(err, "tool server", cfg.ID, "update tool server")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tool server %s: %w", cfg.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes one of the owner's servers
func (r *PostgresToolServerRepository) Delete(ctx context.Context, ownerID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.ToolServers)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, ownerID)
	if err != nil {
		return notFoundOr(err, "tool server", id, "delete tool server")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tool server %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// conflict builds a ConflictError pointing at the existing server
func (r *PostgresToolServerRepository) conflict(ctx context.Context, ownerID, name string) error {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE user_id = $1 AND name = $2`, r.tables.ToolServers)

	var existingID string
	if err := r.pool.QueryRow(ctx, query, ownerID, name).Scan(&existingID); err != nil {
		// Fall back to a generic conflict if the existing row can't be read
		return fmt.Errorf("tool server '%s' already exists: %w", name, domain.ErrConflict)
	}
	return &domain.ConflictError{
		Message:      fmt.Sprintf("tool server '%s' already exists", name),
		ResourceType: "tool_server",
		ResourceID:   existingID,
	}
}

func headersOrEmpty(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}
