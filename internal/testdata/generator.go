package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/database/repository"
	"github.com/jask/finledger/internal/ledger"
)

// Result lists what Seed created.
type Result struct {
	Groups       int
	Accounts     int
	Rules        int
	Transactions int
}

type demoAccounts struct {
	checking, savings, wallet int64
}

// Seed creates a demo ledger for the store's user: two groups, a quarter of
// daily spending, monthly salary and savings transfers, and a cash count
// correction. Categories must already exist (see database.SeedDefaults).
// The same seed always produces the same ledger.
func Seed(ctx context.Context, store *repository.Store, today time.Time, seed int64) (Result, error) {
	var res Result
	rng := rand.New(rand.NewSource(seed))

	cats, err := store.Categories(ctx)
	if err != nil {
		return res, err
	}
	byName := map[string]int64{}
	for _, c := range cats {
		byName[c.FullName] = c.ID
	}
	cat := func(name string, root ledger.TxType) int64 {
		if id, ok := byName[name]; ok {
			return id
		}
		return int64(root)
	}

	acc, err := seedAccounts(ctx, store, &res)
	if err != nil {
		return res, err
	}

	rules := []ledger.Rule{
		{Condition: ledger.PartyContains, Value: "woolworths", CategoryID: cat("Food / Groceries", ledger.TypeExpense)},
		{Condition: ledger.PartyContains, Value: "uber", CategoryID: cat("Transport", ledger.TypeExpense)},
		{Condition: ledger.DetailsContains, Value: "salary", CategoryID: cat("Salary", ledger.TypeIncome)},
	}
	for _, r := range rules {
		if _, err := store.RuleRepo.Create(ctx, r); err != nil {
			return res, err
		}
		res.Rules++
	}

	create := func(t ledger.Transaction) error {
		if _, err := store.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("seed %s on %s: %w", t.Type(), t.Opdate.Format("2006-01-02"), err)
		}
		res.Transactions++
		return nil
	}
	money := func(lo, hi int) decimal.Decimal {
		cents := lo*100 + rng.Intn((hi-lo)*100)
		return decimal.New(int64(cents), -2)
	}

	spending := []struct {
		party    string
		category string
		lo, hi   int
	}{
		{"WOOLWORTHS", "Food / Groceries", 20, 140},
		{"Sushi Bar", "Food / Restaurants", 15, 60},
		{"UBER *TRIP", "Transport", 8, 35},
		{"City Pharmacy", "Health", 5, 50},
	}

	start := today.AddDate(0, -3, 0)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		if d.Day() == 1 {
			if err := create(ledger.Transaction{Opdate: d, Party: "ACME Corp", Details: "Salary", Body: &ledger.Income{
				Recipient: ledger.Leg{AccountID: acc.checking, Amount: decimal.NewFromInt(4200)}, CategoryID: cat("Salary", ledger.TypeIncome)}}); err != nil {
				return res, err
			}
			if err := create(ledger.Transaction{Opdate: d, Details: "Monthly savings", Body: &ledger.Transfer{
				Account:   ledger.Leg{AccountID: acc.checking, Amount: decimal.NewFromInt(800)},
				Recipient: ledger.Leg{AccountID: acc.savings, Amount: decimal.NewFromInt(800)}}}); err != nil {
				return res, err
			}
		}
		if d.Day() == 3 {
			if err := create(ledger.Transaction{Opdate: d, Party: "Landlord", Body: &ledger.Expense{
				Account: ledger.Leg{AccountID: acc.checking, Amount: decimal.NewFromInt(1650)}, CategoryID: cat("Rent", ledger.TypeExpense)}}); err != nil {
				return res, err
			}
		}
		if rng.Intn(3) == 0 {
			continue
		}
		s := spending[rng.Intn(len(spending))]
		account := acc.checking
		if rng.Intn(4) == 0 {
			account = acc.wallet
		}
		if err := create(ledger.Transaction{Opdate: d, Party: s.party, Body: &ledger.Expense{
			Account: ledger.Leg{AccountID: account, Amount: money(s.lo, s.hi)}, CategoryID: cat(s.category, ledger.TypeExpense)}}); err != nil {
			return res, err
		}
	}

	// a cash count two weeks ago came up short
	if err := create(ledger.Transaction{Opdate: today.AddDate(0, 0, -14), Details: "Cash count", Body: &ledger.Correction{
		Leg: ledger.Leg{AccountID: acc.wallet, Amount: decimal.NewFromInt(12)}, CategoryID: int64(ledger.TypeCorrection)}}); err != nil {
		return res, err
	}
	return res, nil
}

func seedAccounts(ctx context.Context, store *repository.Store, res *Result) (demoAccounts, error) {
	var acc demoAccounts
	groups := []struct {
		name     string
		accounts []ledger.Account
		ids      []*int64
	}{
		{"Everyday", []ledger.Account{
			{Name: "Checking", Currency: "USD", StartBalance: decimal.NewFromInt(2500)},
			{Name: "Savings", Currency: "USD", StartBalance: decimal.NewFromInt(10000)},
		}, []*int64{&acc.checking, &acc.savings}},
		{"Travel", []ledger.Account{
			{Name: "Wallet", Currency: "EUR", StartBalance: decimal.NewFromInt(300)},
		}, []*int64{&acc.wallet}},
	}
	for _, g := range groups {
		gid, err := store.GroupRepo.CreateGroup(ctx, ledger.Group{FullName: g.name, OwnerID: store.UserID()})
		if err != nil {
			return acc, err
		}
		res.Groups++
		for i, a := range g.accounts {
			a.GroupID = gid
			id, err := store.GroupRepo.CreateAccount(ctx, a)
			if err != nil {
				return acc, err
			}
			*g.ids[i] = id
			res.Accounts++
		}
	}
	return acc, nil
}
