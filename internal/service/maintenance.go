package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/finledger/internal/database"
)

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes all ledger data and the non-root categories. It keeps the
// schema intact so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmts := []string{
			"DELETE FROM transactions",
			"DELETE FROM rules",
			"DELETE FROM permissions",
			"DELETE FROM accounts",
			"DELETE FROM groups",
			"DELETE FROM categories WHERE parent_id IS NOT NULL",
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("reset: %s: %w", q, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
