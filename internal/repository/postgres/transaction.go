package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/repositories"
)

// TransactionManager implements repositories.TransactionManager on a pool
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(config *RepositoryConfig) repositories.TransactionManager {
	return &TransactionManager{pool: config.Pool, logger: config.Logger}
}

// ExecTx executes fn within a transaction. Nested calls join the outer one.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}
	return execTx(ctx, tm.pool, tm.logger, fn)
}

func execTx(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, fn repositories.TxFn) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Safe even if commit succeeds
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(repositories.SetTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
