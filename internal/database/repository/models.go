package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// opdateLayout keeps operation dates lexically ordered in TEXT columns.
const opdateLayout = "2006-01-02T15:04:05Z"

func formatOpdate(t time.Time) string {
	return t.UTC().Format(opdateLayout)
}

func parseOpdate(s string) (time.Time, error) {
	t, err := time.Parse(opdateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse opdate %q: %w", s, err)
	}
	return t, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
