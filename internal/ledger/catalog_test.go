package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/finledger/internal/daterange"
)

func TestArrangeCategories(t *testing.T) {
	flat := []Category{
		{ID: 12, Name: "Rent", ParentID: ptr[int64](1), Type: TypeExpense},
		{ID: 2, Name: "Income", Type: TypeIncome},
		{ID: 11, Name: "Groceries", ParentID: ptr[int64](10), Type: TypeExpense},
		{ID: 1, Name: "Expense", Type: TypeExpense},
		{ID: 10, Name: "Food", ParentID: ptr[int64](1), Type: TypeExpense},
		{ID: 99, Name: "Orphan", ParentID: ptr[int64](98), Type: TypeExpense},
	}
	var got []string
	for _, c := range ArrangeCategories(flat) {
		got = append(got, c.FullName)
		if c.ID == 11 {
			require.Equal(t, 2, c.Level)
		}
	}
	require.Equal(t, []string{"Expense", "Rent", "Food", "Food / Groceries", "Income"}, got)
}

func TestCheckCategory(t *testing.T) {
	ix := IndexCategories(fixtureCategories())
	cases := []struct {
		name string
		c    Category
		err  error
		typ  TxType
	}{
		{"new under root", Category{Name: "Travel", ParentID: ptr[int64](1)}, nil, TypeExpense},
		{"new under child", Category{Name: "Bonus", ParentID: ptr[int64](20)}, nil, TypeIncome},
		{"blank name", Category{Name: "  ", ParentID: ptr[int64](1)}, ErrValidation, 0},
		{"no parent", Category{Name: "Travel"}, ErrValidation, 0},
		{"unknown parent", Category{Name: "Travel", ParentID: ptr[int64](77)}, ErrNotFound, 0},
		{"under correction", Category{Name: "Fix", ParentID: ptr[int64](3)}, ErrValidation, 0},
		{"rename", Category{ID: 11, Name: "Market", ParentID: ptr[int64](10)}, nil, TypeExpense},
		{"move up", Category{ID: 11, Name: "Groceries", ParentID: ptr[int64](1)}, nil, TypeExpense},
		{"edit root", Category{ID: 1, Name: "Spend", ParentID: ptr[int64](2)}, ErrValidation, 0},
		{"change type", Category{ID: 12, Name: "Rent", ParentID: ptr[int64](2)}, ErrValidation, 0},
		{"below itself", Category{ID: 10, Name: "Food", ParentID: ptr[int64](11)}, ErrValidation, 0},
		{"unknown", Category{ID: 55, Name: "Gone", ParentID: ptr[int64](1)}, ErrNotFound, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			typ, err := CheckCategory(ix, tc.c)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.typ, typ)
		})
	}

	require.ErrorIs(t, CheckDeletable(ix, 2), ErrValidation)
	require.ErrorIs(t, CheckDeletable(ix, 10), ErrValidation)
	require.ErrorIs(t, CheckDeletable(ix, 77), ErrNotFound)
	require.NoError(t, CheckDeletable(ix, 11))

	require.NoError(t, CheckRule(ix, Rule{Condition: PartyContains, Value: "market", CategoryID: 11}))
	require.ErrorIs(t, CheckRule(ix, Rule{Condition: 0, Value: "market", CategoryID: 11}), ErrValidation)
	require.ErrorIs(t, CheckRule(ix, Rule{Condition: PartyContains, Value: " ", CategoryID: 11}), ErrValidation)
	require.ErrorIs(t, CheckRule(ix, Rule{Condition: PartyContains, Value: "fix", CategoryID: 3}), ErrValidation)
	require.ErrorIs(t, CheckRule(ix, Rule{Condition: PartyContains, Value: "x", CategoryID: 77}), ErrNotFound)
}

func TestMemoryCatalogEdits(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(fixtureGroups(), fixtureCategories(), nil)

	travel, err := m.CreateCategory(ctx, 1, " Travel ")
	require.NoError(t, err)
	require.Equal(t, "Travel", travel.Name)
	require.Equal(t, TypeExpense, travel.Type)
	require.Equal(t, 1, travel.Level)

	moved, err := m.UpdateCategory(ctx, Category{ID: 11, Name: "Market", ParentID: ptr(travel.ID)})
	require.NoError(t, err)
	require.Equal(t, "Travel / Market", moved.FullName)

	rule, err := m.CreateRule(ctx, Rule{Condition: PartyContains, Value: "market", CategoryID: 11})
	require.NoError(t, err)
	rule.Value = "bazaar"
	_, err = m.UpdateRule(ctx, rule)
	require.NoError(t, err)
	_, err = m.UpdateRule(ctx, Rule{ID: 42, Condition: PartyContains, Value: "x", CategoryID: 11})
	require.ErrorIs(t, err, ErrNotFound)

	stored, err := m.CreateTransaction(ctx, expense(1, "5", day(2), 11))
	require.NoError(t, err)
	require.ErrorIs(t, m.DeleteCategory(ctx, travel.ID), ErrValidation)
	require.NoError(t, m.DeleteCategory(ctx, 11))

	rules, err := m.Rules(ctx)
	require.NoError(t, err)
	require.Empty(t, rules)
	rows, err := m.Transactions(ctx, Query{Range: daterange.All()}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stored.ID, rows[0].ID)
	require.Zero(t, rows[0].CategoryID())

	require.ErrorIs(t, m.DeleteRule(ctx, rule.ID), ErrNotFound)
}

func TestReloadCatalogRefreshesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, expense(1, "5", day(2), 11), expense(1, "7", day(3), 12))
	require.NoError(t, f.cache.SetCategory(ctx, ptr[int64](11)))
	require.Len(t, f.cache.State().Window, 1)

	_, err := f.store.UpdateCategory(ctx, Category{ID: 11, Name: "Market", ParentID: ptr[int64](10)})
	require.NoError(t, err)
	require.NoError(t, f.cache.ReloadCatalog(ctx))
	s := f.cache.State()
	require.Equal(t, int64(11), *s.Filter.CategoryID)
	require.Equal(t, "Food / Market", IndexCategories(s.Categories)[11].FullName)
	require.Len(t, s.Window, 1)

	require.NoError(t, f.store.DeleteCategory(ctx, 11))
	require.NoError(t, f.cache.ReloadCatalog(ctx))
	s = f.cache.State()
	require.Nil(t, s.Filter.CategoryID)
	require.Len(t, s.Window, 2)
	for _, v := range s.Window {
		require.NotEqual(t, int64(11), v.Tx.CategoryID())
	}
	require.Equal(t, describe(f.refetched(t).State()), describe(s))
	for _, c := range s.CategorySums.Expense {
		require.NotEqual(t, int64(11), c.CategoryID)
	}
}

