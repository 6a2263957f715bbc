package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return time.Date(2026, time.October, n, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

// Accounts: 1 Cash USD, 2 Bank USD and 3 Bank EUR (start 1000).
func fixtureGroups() []Group {
	return []Group{
		{ID: 1, FullName: "Cash", IsOwner: true, Accounts: []Account{
			{ID: 1, GroupID: 1, Name: "Cash", FullName: "Cash", Currency: "USD", Scale: 2},
		}},
		{ID: 2, FullName: "Bank", IsOwner: true, Accounts: []Account{
			{ID: 2, GroupID: 2, Name: "USD", FullName: "Bank USD", Currency: "USD", Scale: 2},
			{ID: 3, GroupID: 2, Name: "EUR", FullName: "Bank EUR", Currency: "EUR", Scale: 2, StartBalance: dec("1000")},
		}},
	}
}

func fixtureCategories() []Category {
	return []Category{
		{ID: 1, Name: "Expense", FullName: "Expense", Level: 0, Type: TypeExpense},
		{ID: 10, Name: "Food", FullName: "Food", Level: 1, Type: TypeExpense, ParentID: ptr[int64](1)},
		{ID: 11, Name: "Groceries", FullName: "Food / Groceries", Level: 2, Type: TypeExpense, ParentID: ptr[int64](10)},
		{ID: 12, Name: "Rent", FullName: "Rent", Level: 1, Type: TypeExpense, ParentID: ptr[int64](1)},
		{ID: 2, Name: "Income", FullName: "Income", Level: 0, Type: TypeIncome},
		{ID: 20, Name: "Salary", FullName: "Salary", Level: 1, Type: TypeIncome, ParentID: ptr[int64](2)},
		{ID: 3, Name: "Correction", FullName: "Correction", Level: 0, Type: TypeCorrection},
	}
}

func leg(acc int64, amount string) Leg { return Leg{AccountID: acc, Amount: dec(amount)} }

func expense(acc int64, amount string, on time.Time, cat int64) Transaction {
	return Transaction{Opdate: on, Party: "shop", Body: &Expense{Account: leg(acc, amount), CategoryID: cat}}
}

func income(acc int64, amount string, on time.Time, cat int64) Transaction {
	return Transaction{Opdate: on, Party: "employer", Body: &Income{Recipient: leg(acc, amount), CategoryID: cat}}
}

func transfer(from, to int64, amount string, on time.Time) Transaction {
	return Transaction{Opdate: on, Body: &Transfer{Account: leg(from, amount), Recipient: leg(to, amount)}}
}

func correction(acc int64, amount string, up bool, on time.Time) Transaction {
	return Transaction{Opdate: on, Body: &Correction{Leg: leg(acc, amount), Up: up, CategoryID: 3}}
}

type fixture struct {
	store *MemoryStore
	cache *Cache
}

func newFixture(t *testing.T, pageSize int, seed ...Transaction) *fixture {
	t.Helper()
	store := NewMemoryStore(fixtureGroups(), fixtureCategories(), nil)
	ctx := context.Background()
	for _, tx := range seed {
		_, err := store.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
	cache := New(store, Options{PageSize: pageSize, Today: func() time.Time { return today }})
	require.NoError(t, cache.Init(ctx))
	return &fixture{store: store, cache: cache}
}

// settle refreshes the cache after a patch that was not exact, as the
// ledger service does.
func (f *fixture) settle(t *testing.T, exact bool) {
	t.Helper()
	if !exact {
		require.NoError(t, f.cache.Refresh(context.Background()))
	}
}

func (f *fixture) create(t *testing.T, tx Transaction) Transaction {
	t.Helper()
	stored, err := f.store.CreateTransaction(context.Background(), tx)
	require.NoError(t, err)
	f.settle(t, f.cache.ApplyMutation(stored, false))
	return stored
}

func (f *fixture) delete(t *testing.T, id int64) {
	t.Helper()
	old, err := f.store.DeleteTransaction(context.Background(), id)
	require.NoError(t, err)
	f.settle(t, f.cache.ApplyMutation(old, true))
}

func (f *fixture) update(t *testing.T, tx Transaction) {
	t.Helper()
	old := f.cache.State().Window[indexOf(f.cache.State().Window, tx.ID)].Tx
	stored, err := f.store.UpdateTransaction(context.Background(), tx)
	require.NoError(t, err)
	f.settle(t, f.cache.ApplyUpdate(old, stored))
}

// refetched builds a fresh cache over the same store with the same filter.
func (f *fixture) refetched(t *testing.T) *Cache {
	t.Helper()
	s := f.cache.State()
	fresh := New(f.store, Options{PageSize: f.cache.pageSize, Today: func() time.Time { return today }})
	fresh.mu.Lock()
	fresh.state.Filter = s.Filter.clone()
	fresh.mu.Unlock()
	require.NoError(t, fresh.Init(context.Background()))
	for !fresh.State().Loaded && len(fresh.State().Window) < len(s.Window) {
		require.NoError(t, fresh.LoadMore(context.Background()))
	}
	return fresh
}

// describe renders the parts of the state the patch must keep exact.
func describe(s State) []string {
	var out []string
	for _, v := range s.Window {
		line := fmt.Sprintf("tx %d %s %s", v.Tx.ID, v.Tx.Type(), v.Amount.Value.String())
		for _, l := range v.Tx.Legs() {
			b := "-"
			if l.Balance != nil {
				b = l.Balance.String()
			}
			line += fmt.Sprintf(" [%d %s]", l.AccountID, b)
		}
		out = append(out, line)
	}
	for _, r := range s.Summary {
		out = append(out, fmt.Sprintf("summary %s c=%s d=%s tc=%s td=%s",
			r.Currency, r.Credit.String(), r.Debit.String(), r.TransfersCredit.String(), r.TransfersDebit.String()))
	}
	for _, g := range s.Groups {
		for _, a := range g.Accounts {
			b := "-"
			if a.Balance != nil {
				b = a.Balance.String()
			}
			out = append(out, fmt.Sprintf("account %d %s", a.ID, b))
		}
	}
	return out
}

func requireSameState(t *testing.T, want, got State) {
	t.Helper()
	require.Equal(t, strings.Join(describe(want), "\n"), strings.Join(describe(got), "\n"))
}

func requireOrdered(t *testing.T, window []TransactionView) {
	t.Helper()
	for i := 1; i < len(window); i++ {
		require.True(t, Newer(&window[i-1].Tx, &window[i].Tx),
			"entry %d (id %d) not newer than entry %d (id %d)", i-1, window[i-1].Tx.ID, i, window[i].Tx.ID)
	}
}
