package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/repositories"
)

//go:embed schema.sql
var schemaSQL string

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	prefix      string
	Profiles    string
	Projects    string
	Messages    string
	Highlights  string
	ToolServers string
	UsageEvents string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		prefix:      prefix,
		Profiles:    fmt.Sprintf("%sprofiles", prefix),
		Projects:    fmt.Sprintf("%sprojects", prefix),
		Messages:    fmt.Sprintf("%smessages", prefix),
		Highlights:  fmt.Sprintf("%shighlights", prefix),
		ToolServers: fmt.Sprintf("%stool_servers", prefix),
		UsageEvents: fmt.Sprintf("%susage_events", prefix),
	}
}

// CreateConnectionPool creates a new pgx connection pool with automatic PgBouncer compatibility.
//
// Port 6543 is Supabase's transaction pooler, which does not support prepared
// statements. On that port the pool switches to QueryExecModeCacheDescribe, which
// keeps the extended protocol (needed for JSONB encoding of maps) without
// creating prepared statements. An explicit default_query_exec_mode in the
// connection string takes precedence.
//
// Dynamic table prefixes are interpolated before SQL reaches the server, so each
// environment gets its own statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	sql := strings.ReplaceAll(schemaSQL, "{{prefix}}", tables.prefix)
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// GetExecutor returns the transaction in ctx if there is one, otherwise the pool.
// Repositories use it to join transactions started by ExecTx.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
