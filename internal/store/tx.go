package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// Querier is implemented by both *sql.DB and *sql.Tx, so read helpers work
// inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction and commits it if fn succeeds. Any error
// rolls back every change fn made.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// now returns the current time in UTC; stored timestamps are always UTC so
// that range queries compare like with like.
func now() time.Time {
	return time.Now().UTC()
}

// uniqueViolation maps a UNIQUE constraint failure on what to ErrConflict.
func uniqueViolation(err error, what string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s already exists", model.ErrConflict, what)
	}
	return fmt.Errorf("writing %s: %w", what, err)
}
