package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
)

var today = time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return time.Date(2026, time.October, n, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func testGroups() []ledger.Group {
	return []ledger.Group{
		{ID: 1, FullName: "Cash", IsOwner: true, Accounts: []ledger.Account{
			{ID: 1, GroupID: 1, Name: "Cash", FullName: "Cash", Currency: "USD", Scale: 2},
		}},
		{ID: 2, FullName: "Bank", IsOwner: true, Accounts: []ledger.Account{
			{ID: 2, GroupID: 2, Name: "USD", FullName: "Bank USD", Currency: "USD", Scale: 2},
		}},
	}
}

func testCategories() []ledger.Category {
	return []ledger.Category{
		{ID: 1, Name: "Expense", FullName: "Expense", Type: ledger.TypeExpense},
		{ID: 10, Name: "Food", FullName: "Food", Level: 1, Type: ledger.TypeExpense, ParentID: ptr[int64](1)},
		{ID: 11, Name: "Groceries", FullName: "Food / Groceries", Level: 2, Type: ledger.TypeExpense, ParentID: ptr[int64](10)},
		{ID: 12, Name: "Restaurants", FullName: "Food / Restaurants", Level: 2, Type: ledger.TypeExpense, ParentID: ptr[int64](10)},
		{ID: 13, Name: "Transport", FullName: "Transport", Level: 1, Type: ledger.TypeExpense, ParentID: ptr[int64](1)},
		{ID: 2, Name: "Income", FullName: "Income", Type: ledger.TypeIncome},
		{ID: 20, Name: "Salary", FullName: "Salary", Level: 1, Type: ledger.TypeIncome, ParentID: ptr[int64](2)},
		{ID: 3, Name: "Correction", FullName: "Correction", Type: ledger.TypeCorrection},
	}
}

func expense(acc int64, amount string, on time.Time, cat int64) ledger.Transaction {
	return ledger.Transaction{Opdate: on, Party: "shop", Body: &ledger.Expense{
		Account: ledger.Leg{AccountID: acc, Amount: dec(amount)}, CategoryID: cat}}
}

func transfer(from, to int64, amount string, on time.Time) ledger.Transaction {
	return ledger.Transaction{Opdate: on, Body: &ledger.Transfer{
		Account:   ledger.Leg{AccountID: from, Amount: dec(amount)},
		Recipient: ledger.Leg{AccountID: to, Amount: dec(amount)},
	}}
}

// countingSource counts category report fetches.
type countingSource struct {
	*ledger.MemoryStore
	categorySums atomic.Int32
}

func (s *countingSource) CategorySummary(ctx context.Context, typ ledger.TxType, accountIDs []int64, r daterange.Range) ([]ledger.CategorySum, error) {
	s.categorySums.Add(1)
	return s.MemoryStore.CategorySummary(ctx, typ, accountIDs, r)
}

// failingMutator rejects every mutation with err.
type failingMutator struct{ err error }

func (m failingMutator) CreateTransaction(context.Context, ledger.Transaction) (ledger.Transaction, error) {
	return ledger.Transaction{}, m.err
}

func (m failingMutator) UpdateTransaction(context.Context, ledger.Transaction) (ledger.Transaction, error) {
	return ledger.Transaction{}, m.err
}

func (m failingMutator) DeleteTransaction(context.Context, int64) (ledger.Transaction, error) {
	return ledger.Transaction{}, m.err
}

var errOffline = errors.New("connection refused")

func newService(t *testing.T, seed ...ledger.Transaction) (*LedgerService, *countingSource) {
	t.Helper()
	src := &countingSource{MemoryStore: ledger.NewMemoryStore(testGroups(), testCategories(), nil)}
	for _, tx := range seed {
		_, err := src.CreateTransaction(context.Background(), tx)
		require.NoError(t, err)
	}
	cache := ledger.New(src, ledger.Options{PageSize: 10, Today: func() time.Time { return today }})
	svc := NewLedgerService(cache, src, nil)
	require.NoError(t, svc.Load(context.Background()))
	return svc, src
}
