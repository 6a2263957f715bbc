package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/finledger/internal/database/repository"
)

func openMigrated(t *testing.T) *repository.CategoryRepo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrationsWithDB(db, "migrations"))
	require.NoError(t, SeedDefaults(context.Background(), db))
	return repository.NewCategoryRepo(db)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, RunMigrations(path, "migrations"))
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, SeedDefaults(ctx, db))
	first, err := repository.NewCategoryRepo(db).List(ctx)
	require.NoError(t, err)
	require.NoError(t, SeedDefaults(ctx, db))
	second, err := repository.NewCategoryRepo(db).List(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)

	names := map[string]bool{}
	for _, c := range first {
		names[c.FullName] = true
	}
	require.True(t, names["Food / Groceries"])
	require.True(t, names["Food / Restaurants"])
	require.True(t, names["Salary"])
	require.True(t, names["Correction"])
}

func TestSeedKeepsRootsFirst(t *testing.T) {
	cats, err := openMigrated(t).List(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Expense", cats[0].Name)
	require.Equal(t, 0, cats[0].Level)

	var food int64
	for _, c := range cats {
		if c.Name == "Food" {
			food = c.ID
		}
		if c.Name == "Groceries" {
			require.NotNil(t, c.ParentID)
			require.Equal(t, food, *c.ParentID)
			require.Equal(t, 2, c.Level)
		}
	}
	require.NotZero(t, food)
}
