package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/finledger/internal/ledger"
)

// RuleRepo handles categorization rules.
type RuleRepo struct {
	db *sql.DB
}

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

func (r *RuleRepo) Create(ctx context.Context, rule ledger.Rule) (int64, error) {
	if rule.Condition < ledger.PartyEquals || rule.Condition > ledger.CategoryNameContains {
		return 0, fmt.Errorf("%w: unknown rule condition %d", ledger.ErrValidation, rule.Condition)
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO rules(condition_type, condition_value, category_id) VALUES (?, ?, ?);
	`, rule.Condition, rule.Value, rule.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	return res.LastInsertId()
}

func (r *RuleRepo) Update(ctx context.Context, rule ledger.Rule) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE rules SET condition_type = ?, condition_value = ?, category_id = ? WHERE id = ?;
	`, rule.Condition, rule.Value, rule.CategoryID, rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: rule %d", ledger.ErrNotFound, rule.ID)
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: rule %d", ledger.ErrNotFound, id)
	}
	return nil
}

func (r *RuleRepo) List(ctx context.Context) ([]ledger.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, condition_type, condition_value, category_id FROM rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Rule
	for rows.Next() {
		var rule ledger.Rule
		if err := rows.Scan(&rule.ID, &rule.Condition, &rule.Value, &rule.CategoryID); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
