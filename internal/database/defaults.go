package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jask/finledger/internal/database/repository"
	"github.com/jask/finledger/internal/ledger"
)

var defaultCategories = []struct {
	root ledger.TxType
	path string
}{
	{ledger.TypeExpense, "Food > Groceries"},
	{ledger.TypeExpense, "Food > Restaurants"},
	{ledger.TypeExpense, "Rent"},
	{ledger.TypeExpense, "Transport"},
	{ledger.TypeExpense, "Utilities"},
	{ledger.TypeExpense, "Health"},
	{ledger.TypeIncome, "Salary"},
	{ledger.TypeIncome, "Interest"},
}

// SeedDefaults ensures the root categories exist and, on an empty tree,
// creates a starter set under them. It is idempotent and safe to run on
// every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	if err := catRepo.EnsureRoots(ctx); err != nil {
		return err
	}
	existing, err := catRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.ID > int64(ledger.TypeCorrection) {
			return nil
		}
	}

	created := map[string]int64{}
	for _, d := range defaultCategories {
		parent := int64(d.root)
		key := d.root.String()
		for _, raw := range strings.Split(d.path, ">") {
			name := strings.TrimSpace(raw)
			key += "/" + name
			if id, ok := created[key]; ok {
				parent = id
				continue
			}
			id, err := catRepo.Create(ctx, parent, name)
			if err != nil {
				return err
			}
			created[key] = id
			parent = id
		}
	}
	return nil
}
