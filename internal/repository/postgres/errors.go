package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"margin/internal/domain"
)

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 = unique_violation
		return pgErr.Code == "23505"
	}
	return false
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23503 = foreign_key_violation
		return pgErr.Code == "23503"
	}
	return false
}

// IsPgInvalidTextError checks for a malformed value, e.g. a non-UUID id
func IsPgInvalidTextError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 22P02 = invalid_text_representation
		return pgErr.Code == "22P02"
	}
	return false
}

// notFoundOr maps no-rows and malformed ids to domain.ErrNotFound
func notFoundOr(err error, what, id, op string) error {
	if IsPgNoRowsError(err) || IsPgInvalidTextError(err) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
