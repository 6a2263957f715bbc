package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
)

// Store is the authoritative ledger backed by sqlite. It implements
// ledger.Source and ledger.Mutator on behalf of one user.
type Store struct {
	db   *sql.DB
	user int64

	GroupRepo       *GroupRepo
	CategoryRepo    *CategoryRepo
	RuleRepo        *RuleRepo
	TransactionRepo *TransactionRepo
}

var (
	_ ledger.Source  = (*Store)(nil)
	_ ledger.Mutator = (*Store)(nil)
)

func NewStore(db *sql.DB, userID int64) *Store {
	return &Store{
		db:              db,
		user:            userID,
		GroupRepo:       NewGroupRepo(db),
		CategoryRepo:    NewCategoryRepo(db),
		RuleRepo:        NewRuleRepo(db),
		TransactionRepo: NewTransactionRepo(db),
	}
}

// For returns a store over the same database acting for another user.
func (s *Store) For(userID int64) *Store {
	out := *s
	out.user = userID
	return &out
}

// UserID is the user the store acts for.
func (s *Store) UserID() int64 { return s.user }

// scope narrows the requested accounts to those in groups the user can see.
// An empty request means every visible account. It reports false when no
// requested account is visible.
func (s *Store) scope(ctx context.Context, accountIDs []int64) ([]int64, bool, error) {
	visible, err := s.GroupRepo.VisibleAccounts(ctx, s.user)
	if err != nil {
		return nil, false, fmt.Errorf("list visible accounts: %w", err)
	}
	if len(accountIDs) == 0 {
		return visible, len(visible) > 0, nil
	}
	ok := make(map[int64]bool, len(visible))
	for _, id := range visible {
		ok[id] = true
	}
	var out []int64
	for _, id := range accountIDs {
		if ok[id] {
			out = append(out, id)
		}
	}
	return out, len(out) > 0, nil
}

func (s *Store) filters(ctx context.Context, q ledger.Query) (TransactionFilters, error) {
	f := TransactionFilters{Query: q}
	if q.CategoryID != nil && *q.CategoryID > int64(ledger.TypeCorrection) {
		cats, err := s.CategoryRepo.List(ctx)
		if err != nil {
			return f, fmt.Errorf("list categories: %w", err)
		}
		ix := ledger.IndexCategories(cats)
		if _, ok := ix[*q.CategoryID]; ok {
			f.Subtree = ix.Subtree(*q.CategoryID)
		}
	}
	return f, nil
}

// Transactions returns a page of the filtered ledger, newest first. Running
// balances are filled in unless the query searches or filters by category.
func (s *Store) Transactions(ctx context.Context, q ledger.Query, offset, limit int) ([]ledger.Transaction, error) {
	ids, ok, err := s.scope(ctx, q.AccountIDs)
	if err != nil || !ok {
		return nil, err
	}
	q.AccountIDs = ids
	f, err := s.filters(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.TransactionRepo.List(ctx, f, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if !q.BalancesTracked() || len(rows) == 0 {
		return rows, nil
	}

	var accounts []int64
	seen := map[int64]bool{}
	for i := range rows {
		for _, l := range rows[i].Legs() {
			if !seen[l.AccountID] {
				seen[l.AccountID] = true
				accounts = append(accounts, l.AccountID)
			}
		}
	}
	history, err := s.TransactionRepo.History(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	starts, err := s.GroupRepo.StartBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("load start balances: %w", err)
	}
	ledger.RunningBalances(history, func(id int64) decimal.Decimal { return starts[id] })

	type key struct{ tx, account int64 }
	balances := map[key]*decimal.Decimal{}
	for i := range history {
		for _, l := range history[i].Legs() {
			balances[key{history[i].ID, l.AccountID}] = l.Balance
		}
	}
	for i := range rows {
		for _, l := range rows[i].Legs() {
			l.Balance = balances[key{rows[i].ID, l.AccountID}]
		}
	}
	return rows, nil
}

// Groups returns the groups the user can see with current balances and
// last operation dates.
func (s *Store) Groups(ctx context.Context) ([]ledger.Group, error) {
	groups, err := s.GroupRepo.List(ctx, s.user)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	var accounts []int64
	for _, g := range groups {
		for _, a := range g.Accounts {
			accounts = append(accounts, a.ID)
		}
	}
	if len(accounts) == 0 {
		return groups, nil
	}
	history, err := s.TransactionRepo.History(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	starts, err := s.GroupRepo.StartBalances(ctx)
	if err != nil {
		return nil, err
	}
	finals := ledger.RunningBalances(history, func(id int64) decimal.Decimal { return starts[id] })
	last := map[int64]time.Time{}
	for i := range history {
		for _, l := range history[i].Legs() {
			last[l.AccountID] = history[i].Opdate
		}
	}
	for gi := range groups {
		for ai := range groups[gi].Accounts {
			a := &groups[gi].Accounts[ai]
			b, ok := finals[a.ID]
			if !ok {
				b = a.StartBalance
			}
			a.Balance = &b
			if op, ok := last[a.ID]; ok {
				a.Opdate = &op
			}
		}
	}
	return groups, nil
}

func (s *Store) Categories(ctx context.Context) ([]ledger.Category, error) {
	return s.CategoryRepo.List(ctx)
}

func (s *Store) Rules(ctx context.Context) ([]ledger.Rule, error) {
	return s.RuleRepo.List(ctx)
}

// inRange lists every visible transaction selected by q. The query is left
// unscoped so aggregates keep the caller's account selection.
func (s *Store) inRange(ctx context.Context, q ledger.Query) ([]ledger.Transaction, error) {
	ids, ok, err := s.scope(ctx, q.AccountIDs)
	if err != nil || !ok {
		return nil, err
	}
	q.AccountIDs = ids
	rows, err := s.TransactionRepo.List(ctx, TransactionFilters{Query: q}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return rows, nil
}

func (s *Store) Summary(ctx context.Context, accountIDs []int64, r daterange.Range) ([]ledger.Summary, error) {
	q := ledger.Query{AccountIDs: accountIDs, Range: r}
	rows, err := s.inRange(ctx, q)
	if err != nil {
		return nil, err
	}
	return ledger.BuildSummary(rows, q), nil
}

func (s *Store) CategorySummary(ctx context.Context, typ ledger.TxType, accountIDs []int64, r daterange.Range) ([]ledger.CategorySum, error) {
	q := ledger.Query{AccountIDs: accountIDs, Range: r}
	rows, err := s.inRange(ctx, q)
	if err != nil {
		return nil, err
	}
	cats, err := s.CategoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return ledger.BuildCategorySums(rows, typ, cats, q), nil
}

// prepare validates t, checks write access and fills leg currencies.
func (s *Store) prepare(ctx context.Context, tx *sql.Tx, cats ledger.CategoryIndex, t *ledger.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, l := range t.Legs() {
		a, err := s.GroupRepo.Account(ctx, tx, l.AccountID)
		if err != nil {
			return err
		}
		access, err := s.GroupRepo.Access(ctx, tx, l.AccountID, s.user)
		if err != nil {
			return err
		}
		if access < ledger.Write {
			return fmt.Errorf("%w: account %d is read-only", ledger.ErrForbidden, l.AccountID)
		}
		l.Currency, l.Scale, l.Balance = a.Currency, a.Scale, nil
	}
	return t.CheckCategory(cats)
}

// categoryIndex is loaded outside write transactions; the pool holds a
// single sqlite connection.
func (s *Store) categoryIndex(ctx context.Context) (ledger.CategoryIndex, error) {
	cats, err := s.CategoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return ledger.IndexCategories(cats), nil
}

// pin lets the first later correction on each account of t absorb t's
// effect and stores the rewritten corrections.
func (s *Store) pin(ctx context.Context, tx *sql.Tx, t *ledger.Transaction, removed bool) error {
	later, err := s.TransactionRepo.LaterCorrections(ctx, tx, t)
	if err != nil {
		return fmt.Errorf("load corrections: %w", err)
	}
	ptrs := make([]*ledger.Transaction, len(later))
	for i := range later {
		ptrs[i] = &later[i]
	}
	for _, c := range ledger.Pin(ptrs, t, removed) {
		if err := s.TransactionRepo.Update(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	cats, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t = t.Clone()
	var out ledger.Transaction
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.prepare(ctx, tx, cats, &t); err != nil {
			return err
		}
		id, err := s.TransactionRepo.Insert(ctx, tx, &t)
		if err != nil {
			return err
		}
		t.ID = id
		if err := s.pin(ctx, tx, &t, false); err != nil {
			return err
		}
		out, err = s.TransactionRepo.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return out, nil
}

// UpdateTransaction undoes the stored version, then applies t.
func (s *Store) UpdateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	cats, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t = t.Clone()
	var out ledger.Transaction
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		old, err := s.TransactionRepo.Get(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if err := s.prepare(ctx, tx, cats, &old); err != nil {
			return err
		}
		if err := s.prepare(ctx, tx, cats, &t); err != nil {
			return err
		}
		if err := s.pin(ctx, tx, &old, true); err != nil {
			return err
		}
		if err := s.TransactionRepo.Update(ctx, tx, &t); err != nil {
			return err
		}
		if err := s.pin(ctx, tx, &t, false); err != nil {
			return err
		}
		out, err = s.TransactionRepo.Get(ctx, tx, t.ID)
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return out, nil
}

// DeleteTransaction removes the transaction and returns it as it was stored.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	cats, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	var old ledger.Transaction
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if old, err = s.TransactionRepo.Get(ctx, tx, id); err != nil {
			return err
		}
		if err := s.prepare(ctx, tx, cats, &old); err != nil {
			return err
		}
		if err := s.TransactionRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.pin(ctx, tx, &old, true)
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return old, nil
}
