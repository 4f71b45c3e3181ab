package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that both *pgxpool.Pool and pgx.Tx implement
// This allows repositories to work with both regular connections and transactions
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

type txContextKey struct{}

// SetTx stores a transaction in the context
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// GetTx retrieves a transaction from the context, or nil
func GetTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx
}

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager runs functions atomically. Repositories called with the
// ctx passed to fn join the transaction.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
