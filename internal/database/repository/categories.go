package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jask/finledger/internal/ledger"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

var roots = []ledger.Category{
	{ID: int64(ledger.TypeExpense), Name: "Expense", Type: ledger.TypeExpense},
	{ID: int64(ledger.TypeIncome), Name: "Income", Type: ledger.TypeIncome},
	{ID: int64(ledger.TypeCorrection), Name: "Correction", Type: ledger.TypeCorrection},
}

// EnsureRoots creates the per-type root categories. Their ids equal the type.
func (r *CategoryRepo) EnsureRoots(ctx context.Context) error {
	for i, c := range roots {
		_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories(id, parent_id, name, type, position) VALUES (?, NULL, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING;
		`, c.ID, c.Name, c.Type, i)
		if err != nil {
			return fmt.Errorf("insert root %s: %w", c.Name, err)
		}
	}
	return nil
}

// Create adds a category under parent, inheriting the parent's type.
func (r *CategoryRepo) Create(ctx context.Context, parentID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: category name is required", ledger.ErrValidation)
	}
	var typ ledger.TxType
	err := r.db.QueryRowContext(ctx, `SELECT type FROM categories WHERE id = ?`, parentID).Scan(&typ)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: category %d", ledger.ErrNotFound, parentID)
	}
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(parent_id, name, type, position)
	VALUES (?, ?, ?, (SELECT COUNT(*) FROM categories WHERE parent_id = ?));
	`, parentID, name, typ, parentID)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

// Delete removes a leaf category. Transactions using it become uncategorized.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) error {
	if id <= int64(ledger.TypeCorrection) {
		return fmt.Errorf("%w: root categories cannot be deleted", ledger.ErrValidation)
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var children int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id = ?`, id).Scan(&children); err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("%w: category %d has children", ledger.ErrValidation, id)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET category_id = NULL WHERE category_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE category_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		return err
	})
}

// Update renames a category and moves it under parentID, last among its new
// siblings when the parent changes. Callers validate the edit first.
func (r *CategoryRepo) Update(ctx context.Context, id, parentID int64, name string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE categories SET name = ?,
		position = CASE WHEN parent_id = ? THEN position
			ELSE (SELECT COUNT(*) FROM categories WHERE parent_id = ?) END,
		parent_id = ?
	WHERE id = ?;
	`, strings.TrimSpace(name), parentID, parentID, parentID, id)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %d", ledger.ErrNotFound, id)
	}
	return nil
}

// List returns categories in depth-first order with levels and breadcrumb
// names filled in.
func (r *CategoryRepo) List(ctx context.Context) ([]ledger.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, parent_id, name, type FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []ledger.Category
	for rows.Next() {
		var c ledger.Category
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &parent, &c.Name, &c.Type); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := parent.Int64
			c.ParentID = &p
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ledger.ArrangeCategories(cats), nil
}
