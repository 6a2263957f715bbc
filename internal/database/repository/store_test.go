package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/finledger/internal/database"
	"github.com/jask/finledger/internal/database/repository"
	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
)

const (
	userID  = 1
	otherID = 2
)

var today = time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return time.Date(2026, time.October, n, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type ids struct {
	cash, bankUSD, bankEUR, shared int64
	food, groceries, salary       int64
}

func newStore(t *testing.T) (*repository.Store, ids) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, database.RunMigrations(path, "../migrations"))
	db, err := database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := repository.NewStore(db, userID)
	var x ids
	require.NoError(t, s.CategoryRepo.EnsureRoots(ctx))
	x.food, err = s.CategoryRepo.Create(ctx, int64(ledger.TypeExpense), "Food")
	require.NoError(t, err)
	x.groceries, err = s.CategoryRepo.Create(ctx, x.food, "Groceries")
	require.NoError(t, err)
	x.salary, err = s.CategoryRepo.Create(ctx, int64(ledger.TypeIncome), "Salary")
	require.NoError(t, err)

	cash, err := s.GroupRepo.CreateGroup(ctx, ledger.Group{FullName: "Cash", OwnerID: userID})
	require.NoError(t, err)
	x.cash, err = s.GroupRepo.CreateAccount(ctx, ledger.Account{GroupID: cash, Name: "Cash", Currency: "USD"})
	require.NoError(t, err)
	bank, err := s.GroupRepo.CreateGroup(ctx, ledger.Group{FullName: "Bank", OwnerID: userID})
	require.NoError(t, err)
	x.bankUSD, err = s.GroupRepo.CreateAccount(ctx, ledger.Account{GroupID: bank, Name: "USD", Currency: "USD"})
	require.NoError(t, err)
	x.bankEUR, err = s.GroupRepo.CreateAccount(ctx, ledger.Account{GroupID: bank, Name: "EUR", Currency: "EUR", StartBalance: dec("1000")})
	require.NoError(t, err)

	family, err := s.GroupRepo.CreateGroup(ctx, ledger.Group{FullName: "Family", OwnerID: otherID})
	require.NoError(t, err)
	x.shared, err = s.GroupRepo.CreateAccount(ctx, ledger.Account{GroupID: family, Name: "Joint", Currency: "USD"})
	require.NoError(t, err)
	require.NoError(t, s.GroupRepo.Grant(ctx, family, ledger.Permission{UserID: userID, Login: "me", Access: ledger.Read}))
	return s, x
}

func leg(acc int64, amount string) ledger.Leg { return ledger.Leg{AccountID: acc, Amount: dec(amount)} }

func expense(acc int64, amount string, on time.Time, cat int64) ledger.Transaction {
	return ledger.Transaction{Opdate: on, Party: "shop", Body: &ledger.Expense{Account: leg(acc, amount), CategoryID: cat}}
}

func income(acc int64, amount string, on time.Time, cat int64) ledger.Transaction {
	return ledger.Transaction{Opdate: on, Party: "employer", Body: &ledger.Income{Recipient: leg(acc, amount), CategoryID: cat}}
}

func transfer(from, to int64, amount string, on time.Time) ledger.Transaction {
	return ledger.Transaction{Opdate: on, Body: &ledger.Transfer{Account: leg(from, amount), Recipient: leg(to, amount)}}
}

func correction(acc int64, amount string, up bool, on time.Time) ledger.Transaction {
	return ledger.Transaction{Opdate: on, Body: &ledger.Correction{Leg: leg(acc, amount), Up: up, CategoryID: int64(ledger.TypeCorrection)}}
}

func create(t *testing.T, s *repository.Store, tx ledger.Transaction) ledger.Transaction {
	t.Helper()
	stored, err := s.CreateTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.NotZero(t, stored.ID)
	return stored
}

func balances(t *testing.T, s *repository.Store, acc int64) []string {
	t.Helper()
	rows, err := s.Transactions(context.Background(), ledger.Query{AccountIDs: []int64{acc}, Range: daterange.All()}, 0, 0)
	require.NoError(t, err)
	var out []string
	for i := range rows {
		for _, l := range rows[i].Legs() {
			if l.AccountID == acc {
				require.NotNil(t, l.Balance, "tx %d", rows[i].ID)
				out = append(out, l.Balance.String())
			}
		}
	}
	return out
}

func TestRunningBalancesAndGroups(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	create(t, s, income(x.cash, "100", day(1), x.salary))
	create(t, s, expense(x.cash, "30", day(2), x.groceries))
	create(t, s, transfer(x.cash, x.bankUSD, "20.50", day(3)))

	require.Equal(t, []string{"49.5", "70", "100"}, balances(t, s, x.cash))
	require.Equal(t, []string{"20.5"}, balances(t, s, x.bankUSD))

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	got := map[int64]string{}
	for _, g := range groups {
		for _, a := range g.Accounts {
			require.NotNil(t, a.Balance)
			got[a.ID] = a.Balance.String()
		}
	}
	require.Equal(t, "49.5", got[x.cash])
	require.Equal(t, "20.5", got[x.bankUSD])
	require.Equal(t, "1000", got[x.bankEUR])
	require.Equal(t, "Bank USD", groups[1].Accounts[0].FullName)
	require.Equal(t, "Cash", groups[0].Accounts[0].FullName)
	require.Equal(t, day(3), *groups[0].Accounts[0].Opdate)
}

func TestSearchDropsBalances(t *testing.T) {
	s, x := newStore(t)
	create(t, s, expense(x.cash, "10", day(2), 0))
	rows, err := s.Transactions(context.Background(), ledger.Query{Search: "SHO", Range: daterange.All()}, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Nil(t, rows[0].AccountLeg().Balance)
}

func TestCorrectionStaysPinned(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	corr := create(t, s, correction(x.cash, "20", true, day(10)))
	exp := create(t, s, expense(x.cash, "30", day(5), 0))

	rows, err := s.Transactions(ctx, ledger.Query{AccountIDs: []int64{x.cash}, Range: daterange.All()}, 0, 1)
	require.NoError(t, err)
	require.Equal(t, corr.ID, rows[0].ID)
	require.Equal(t, "50", rows[0].Body.(*ledger.Correction).Leg.Amount.String())

	require.Equal(t, []string{"20", "-30"}, balances(t, s, x.cash))

	exp.Body.(*ledger.Expense).Account.Amount = dec("50")
	_, err = s.UpdateTransaction(ctx, exp)
	require.NoError(t, err)
	require.Equal(t, []string{"20", "-50"}, balances(t, s, x.cash))

	_, err = s.DeleteTransaction(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"20"}, balances(t, s, x.cash))
}

func TestCorrectionSwitchesSide(t *testing.T) {
	s, x := newStore(t)
	create(t, s, income(x.cash, "100", day(1), 0))
	corr := create(t, s, correction(x.cash, "10", true, day(10)))
	create(t, s, income(x.cash, "30", day(5), 0))

	rows, err := s.Transactions(context.Background(), ledger.Query{AccountIDs: []int64{x.cash}, Range: daterange.All()}, 0, 1)
	require.NoError(t, err)
	require.Equal(t, corr.ID, rows[0].ID)
	c := rows[0].Body.(*ledger.Correction)
	require.False(t, c.Up)
	require.Equal(t, "20", c.Leg.Amount.String())
	require.Equal(t, "110", c.Leg.Balance.String())
}

func TestListFilters(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	create(t, s, expense(x.cash, "10", day(2), x.groceries))
	create(t, s, expense(x.cash, "20", day(3), x.food))
	create(t, s, expense(x.bankUSD, "5", day(4), 0))
	create(t, s, income(x.bankEUR, "70", day(5), x.salary))
	create(t, s, expense(x.cash, "1", time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC), 0))

	month := daterange.CurrentMonth(today)
	count := func(q ledger.Query) int {
		q.Range = month
		rows, err := s.Transactions(ctx, q, 0, 0)
		require.NoError(t, err)
		return len(rows)
	}
	food := x.food
	noCat := int64(ledger.NoCategoryExpense)
	incomeRoot := int64(ledger.TypeIncome)
	require.Equal(t, 4, count(ledger.Query{}))
	require.Equal(t, 2, count(ledger.Query{CategoryID: &food}))
	require.Equal(t, 1, count(ledger.Query{CategoryID: &noCat}))
	require.Equal(t, 1, count(ledger.Query{CategoryID: &incomeRoot}))
	require.Equal(t, 1, count(ledger.Query{Currency: "EUR"}))
	require.Equal(t, 2, count(ledger.Query{AccountIDs: []int64{x.cash}}))
	require.Equal(t, 1, count(ledger.Query{Search: "employer"}))
	require.Equal(t, 1, count(ledger.Query{Search: "GROCER"}))
	require.Equal(t, 1, count(ledger.Query{Search: "food"}))
	require.Equal(t, 1, count(ledger.Query{Search: "salary"}))

	page, err := s.Transactions(ctx, ledger.Query{Range: daterange.All()}, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, day(4), page[0].Opdate)
}

func TestMutationErrors(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()

	_, err := s.CreateTransaction(ctx, expense(x.shared, "10", day(2), 0))
	require.ErrorIs(t, err, ledger.ErrForbidden)

	_, err = s.CreateTransaction(ctx, expense(999, "10", day(2), 0))
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = s.CreateTransaction(ctx, expense(x.cash, "0", day(2), 0))
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = s.CreateTransaction(ctx, expense(x.cash, "5", day(2), x.salary))
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = s.DeleteTransaction(ctx, 42)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	family := int64(0)
	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	for _, g := range groups {
		if g.IsShared {
			family = g.ID
		}
	}
	require.NoError(t, s.GroupRepo.Grant(ctx, family, ledger.Permission{UserID: userID, Login: "me", Access: ledger.Write}))
	create(t, s, expense(x.shared, "10", day(2), 0))
}

func groupNamed(t *testing.T, s *repository.Store, name string) ledger.Group {
	t.Helper()
	groups, err := s.Groups(context.Background())
	require.NoError(t, err)
	for _, g := range groups {
		if g.FullName == name {
			return g
		}
	}
	t.Fatalf("group %q not visible", name)
	return ledger.Group{}
}

func TestGroupsScopedToUser(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	create(t, s, income(x.cash, "100", day(1), x.salary))
	other := s.For(otherID)
	create(t, other, expense(x.shared, "10", day(2), 0))

	groups, err := other.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	family := groups[0]
	require.Equal(t, "Family", family.FullName)
	require.True(t, family.IsOwner)
	require.False(t, family.IsCoowner)
	require.False(t, family.IsShared)
	require.Equal(t, "-10", family.Accounts[0].Balance.String())

	rows, err := other.Transactions(ctx, ledger.Query{Range: daterange.All()}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	rows, err = other.Transactions(ctx, ledger.Query{AccountIDs: []int64{x.cash}, Range: daterange.All()}, 0, 0)
	require.NoError(t, err)
	require.Empty(t, rows)
	summary, err := other.Summary(ctx, nil, daterange.CurrentMonth(today))
	require.NoError(t, err)
	require.Len(t, summary, 1)
	require.Equal(t, "10", summary[0].Debit.String())
	require.True(t, summary[0].Credit.IsZero())
	_, err = other.CreateTransaction(ctx, expense(x.cash, "5", day(3), 0))
	require.ErrorIs(t, err, ledger.ErrForbidden)

	mine := groupNamed(t, s, "Family")
	require.False(t, mine.IsOwner)
	require.False(t, mine.IsCoowner)
	require.True(t, mine.IsShared)
	require.True(t, groupNamed(t, s, "Cash").IsOwner)
	_, err = s.CreateTransaction(ctx, expense(x.shared, "5", day(3), 0))
	require.ErrorIs(t, err, ledger.ErrForbidden)

	require.NoError(t, s.GroupRepo.Grant(ctx, family.ID, ledger.Permission{UserID: userID, Login: "me", Access: ledger.Admin}))
	mine = groupNamed(t, s, "Family")
	require.True(t, mine.IsCoowner)
	require.False(t, mine.IsShared)
	theirs := groupNamed(t, other, "Family")
	require.True(t, theirs.IsCoowner)
	require.False(t, theirs.IsOwner)
	create(t, s, expense(x.shared, "5", day(3), 0))

	stranger := s.For(3)
	groups, err = stranger.Groups(ctx)
	require.NoError(t, err)
	require.Empty(t, groups)
	rows, err = stranger.Transactions(ctx, ledger.Query{Range: daterange.All()}, 0, 0)
	require.NoError(t, err)
	require.Empty(t, rows)
	summary, err = stranger.Summary(ctx, nil, daterange.All())
	require.NoError(t, err)
	require.Empty(t, summary)
	_, err = stranger.DeleteTransaction(ctx, latestID(t, other))
	require.ErrorIs(t, err, ledger.ErrForbidden)

	_, err = s.GroupRepo.CreateGroup(ctx, ledger.Group{FullName: "Nobody"})
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func latestID(t *testing.T, s *repository.Store) int64 {
	t.Helper()
	rows, err := s.Transactions(context.Background(), ledger.Query{Range: daterange.All()}, 0, 1)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	return rows[0].ID
}

func TestCategorySummaryCollapsesToTopLevel(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	create(t, s, expense(x.cash, "10", day(2), x.groceries))
	create(t, s, expense(x.cash, "20", day(3), x.food))
	create(t, s, expense(x.bankUSD, "5", day(4), 0))
	create(t, s, income(x.bankEUR, "70", day(5), x.salary))

	sums, err := s.CategorySummary(ctx, ledger.TypeExpense, nil, daterange.CurrentMonth(today))
	require.NoError(t, err)
	require.Len(t, sums, 2)
	require.Equal(t, ledger.NoCategoryName, sums[0].Name)
	require.Equal(t, "5", sums[0].Amounts[0].Value.String())
	require.Equal(t, x.food, sums[1].CategoryID)
	require.Equal(t, "30", sums[1].Amounts[0].Value.String())

	summary, err := s.Summary(ctx, []int64{x.cash, x.bankEUR}, daterange.CurrentMonth(today))
	require.NoError(t, err)
	require.Len(t, summary, 2)
	require.Equal(t, "EUR", summary[0].Currency)
	require.Equal(t, "70", summary[0].Credit.String())
	require.Equal(t, "USD", summary[1].Currency)
	require.Equal(t, "30", summary[1].Debit.String())
}

// describe renders what a patched cache must keep identical to a refetch.
func describe(s ledger.State) string {
	var out []string
	for _, v := range s.Window {
		line := fmt.Sprintf("tx %d %s %s", v.Tx.ID, v.Tx.Type(), v.Amount.Value.String())
		for _, l := range v.Tx.Legs() {
			b := "-"
			if l.Balance != nil {
				b = l.Balance.String()
			}
			line += fmt.Sprintf(" [%d %s %s]", l.AccountID, l.Amount.String(), b)
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
	return strings.Join(out, "\n")
}

func TestCachePatchMatchesStoreRefetch(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	opts := ledger.Options{PageSize: 50, Today: func() time.Time { return today }}

	create(t, s, income(x.cash, "200", day(1), x.salary))
	create(t, s, correction(x.cash, "150", true, day(8)))
	create(t, s, expense(x.bankEUR, "12.25", day(6), x.groceries))

	cache := ledger.New(s, opts)
	require.NoError(t, cache.Init(ctx))

	apply := func(tx ledger.Transaction) ledger.Transaction {
		stored := create(t, s, tx)
		require.True(t, cache.ApplyMutation(stored, false), "tx %d", stored.ID)
		return stored
	}
	exp := apply(expense(x.cash, "40", day(4), x.food))
	apply(transfer(x.cash, x.bankUSD, "15", day(12)))
	apply(income(x.bankEUR, "99.99", day(9), 0))

	var old ledger.Transaction
	for _, v := range cache.State().Window {
		if v.Tx.ID == exp.ID {
			old = v.Tx
		}
	}
	exp.Body.(*ledger.Expense).Account.Amount = dec("25")
	exp.Opdate = day(3)
	updated, err := s.UpdateTransaction(ctx, exp)
	require.NoError(t, err)
	require.True(t, cache.ApplyUpdate(old, updated))

	removed, err := s.DeleteTransaction(ctx, exp.ID)
	require.NoError(t, err)
	require.True(t, cache.ApplyMutation(removed, true))

	fresh := ledger.New(s, opts)
	require.NoError(t, fresh.Init(ctx))
	require.Equal(t, describe(fresh.State()), describe(cache.State()))
}

func TestCatalogEdits(t *testing.T) {
	s, x := newStore(t)
	ctx := context.Background()
	create(t, s, expense(x.cash, "10", day(2), x.groceries))

	travel, err := s.CreateCategory(ctx, int64(ledger.TypeExpense), "Travel")
	require.NoError(t, err)
	require.Equal(t, ledger.TypeExpense, travel.Type)
	require.Equal(t, 1, travel.Level)
	_, err = s.CreateCategory(ctx, int64(ledger.TypeCorrection), "Fix")
	require.ErrorIs(t, err, ledger.ErrValidation)

	moved, err := s.UpdateCategory(ctx, ledger.Category{ID: x.groceries, Name: "Market", ParentID: &travel.ID})
	require.NoError(t, err)
	require.Equal(t, "Travel / Market", moved.FullName)
	_, err = s.UpdateCategory(ctx, ledger.Category{ID: x.groceries, Name: "Market", ParentID: ptr(int64(ledger.TypeIncome))})
	require.ErrorIs(t, err, ledger.ErrValidation)

	sums, err := s.CategorySummary(ctx, ledger.TypeExpense, nil, daterange.CurrentMonth(today))
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, travel.ID, sums[0].CategoryID)

	rule, err := s.CreateRule(ctx, ledger.Rule{Condition: ledger.PartyContains, Value: "market", CategoryID: x.groceries})
	require.NoError(t, err)
	require.NotZero(t, rule.ID)
	rule.Value = "bazaar"
	_, err = s.UpdateRule(ctx, rule)
	require.NoError(t, err)
	_, err = s.UpdateRule(ctx, ledger.Rule{ID: 999, Condition: ledger.PartyContains, Value: "x", CategoryID: x.food})
	require.ErrorIs(t, err, ledger.ErrNotFound)
	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "bazaar", rules[0].Value)

	require.ErrorIs(t, s.DeleteCategory(ctx, travel.ID), ledger.ErrValidation)
	require.NoError(t, s.DeleteCategory(ctx, x.groceries))
	rules, err = s.Rules(ctx)
	require.NoError(t, err)
	require.Empty(t, rules)
	rows, err := s.Transactions(ctx, ledger.Query{Range: daterange.All()}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, rows[0].CategoryID())

	require.ErrorIs(t, s.DeleteRule(ctx, rule.ID), ledger.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
