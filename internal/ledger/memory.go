package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/daterange"
)

// MemoryStore is an in-memory Source and Mutator. It applies the same
// balance, summary and correction rules as the database store.
type MemoryStore struct {
	mu sync.RWMutex

	groups     []Group
	categories []Category
	rules      []Rule
	txs        map[int64]Transaction
	nextID     int64
}

func NewMemoryStore(groups []Group, categories []Category, rules []Rule) *MemoryStore {
	return &MemoryStore{
		groups:     cloneGroups(groups),
		categories: ArrangeCategories(categories),
		rules:      slices.Clone(rules),
		txs:        make(map[int64]Transaction),
		nextID:     1,
	}
}

func (m *MemoryStore) account(id int64) (Account, bool) {
	for _, g := range m.groups {
		for _, a := range g.Accounts {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Account{}, false
}

// history returns a copy of every transaction, oldest first.
func (m *MemoryStore) history() []Transaction {
	out := make([]Transaction, 0, len(m.txs))
	for _, t := range m.txs {
		out = append(out, t.Clone())
	}
	SortOldestFirst(out)
	return out
}

func (m *MemoryStore) start(id int64) decimal.Decimal {
	a, _ := m.account(id)
	return a.StartBalance
}

func (m *MemoryStore) Transactions(_ context.Context, q Query, offset, limit int) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.history()
	if q.BalancesTracked() {
		RunningBalances(history, m.start)
	}
	ix := IndexCategories(m.categories)
	var rows []Transaction
	for i := range history {
		if q.Matches(&history[i], ix) {
			rows = append(rows, history[i])
		}
	}
	SortNewestFirst(rows)
	if offset >= len(rows) {
		return nil, nil
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end], nil
}

func (m *MemoryStore) Groups(_ context.Context) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	finals := RunningBalances(m.history(), m.start)
	groups := cloneGroups(m.groups)
	for gi := range groups {
		for ai := range groups[gi].Accounts {
			a := &groups[gi].Accounts[ai]
			b, ok := finals[a.ID]
			if !ok {
				b = a.StartBalance
			}
			a.Balance = &b
		}
	}
	return groups, nil
}

func (m *MemoryStore) Categories(_ context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.categories), nil
}

func (m *MemoryStore) Rules(_ context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rules), nil
}

func (m *MemoryStore) Summary(_ context.Context, accountIDs []int64, r daterange.Range) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BuildSummary(m.history(), Query{AccountIDs: accountIDs, Range: r}), nil
}

func (m *MemoryStore) CategorySummary(_ context.Context, typ TxType, accountIDs []int64, r daterange.Range) ([]CategorySum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BuildCategorySums(m.history(), typ, m.categories, Query{AccountIDs: accountIDs, Range: r}), nil
}

// prepare validates t and fills leg currencies from the accounts.
func (m *MemoryStore) prepare(t *Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, l := range t.Legs() {
		a, ok := m.account(l.AccountID)
		if !ok || a.Deleted {
			return fmt.Errorf("%w: account %d", ErrNotFound, l.AccountID)
		}
		l.Currency, l.Scale, l.Balance = a.Currency, a.Scale, nil
	}
	return t.CheckCategory(IndexCategories(m.categories))
}

func (m *MemoryStore) pin(t *Transaction, removed bool) {
	ptrs := make([]*Transaction, 0, len(m.txs))
	stored := make([]Transaction, 0, len(m.txs))
	for _, h := range m.txs {
		stored = append(stored, h)
	}
	for i := range stored {
		ptrs = append(ptrs, &stored[i])
	}
	for _, c := range Pin(ptrs, t, removed) {
		m.txs[c.ID] = *c
	}
}

func (m *MemoryStore) CreateTransaction(_ context.Context, t Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t = t.Clone()
	if err := m.prepare(&t); err != nil {
		return Transaction{}, err
	}
	t.ID = m.nextID
	m.nextID++
	m.pin(&t, false)
	m.txs[t.ID] = t
	return t.Clone(), nil
}

func (m *MemoryStore) UpdateTransaction(_ context.Context, t Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.txs[t.ID]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: transaction %d", ErrNotFound, t.ID)
	}
	t = t.Clone()
	if err := m.prepare(&t); err != nil {
		return Transaction{}, err
	}
	delete(m.txs, old.ID)
	m.pin(&old, true)
	m.pin(&t, false)
	m.txs[t.ID] = t
	return t.Clone(), nil
}

func (m *MemoryStore) DeleteTransaction(_ context.Context, id int64) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.txs[id]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	delete(m.txs, id)
	m.pin(&old, true)
	return old.Clone(), nil
}

func (m *MemoryStore) category(id int64) (Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: category %d", ErrNotFound, id)
}

func (m *MemoryStore) CreateCategory(_ context.Context, parentID int64, name string) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Category{Name: strings.TrimSpace(name), ParentID: &parentID}
	typ, err := CheckCategory(IndexCategories(m.categories), c)
	if err != nil {
		return Category{}, err
	}
	c.Type = typ
	for _, cur := range m.categories {
		c.ID = max(c.ID, cur.ID)
	}
	c.ID++
	m.categories = ArrangeCategories(append(m.categories, c))
	return m.category(c.ID)
}

// UpdateCategory renames c and, when the parent changes, moves it last
// among its new siblings.
func (m *MemoryStore) UpdateCategory(_ context.Context, c Category) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := CheckCategory(IndexCategories(m.categories), c); err != nil {
		return Category{}, err
	}
	i := slices.IndexFunc(m.categories, func(cur Category) bool { return cur.ID == c.ID })
	cur := m.categories[i]
	cur.Name = strings.TrimSpace(c.Name)
	rest := slices.Delete(slices.Clone(m.categories), i, i+1)
	if *cur.ParentID == *c.ParentID {
		rest = slices.Insert(rest, i, cur)
	} else {
		parent := *c.ParentID
		cur.ParentID = &parent
		rest = append(rest, cur)
	}
	m.categories = ArrangeCategories(rest)
	return m.category(c.ID)
}

func (m *MemoryStore) DeleteCategory(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := CheckDeletable(IndexCategories(m.categories), id); err != nil {
		return err
	}
	m.categories = slices.DeleteFunc(slices.Clone(m.categories), func(c Category) bool { return c.ID == id })
	m.rules = slices.DeleteFunc(m.rules, func(r Rule) bool { return r.CategoryID == id })
	for txID, t := range m.txs {
		t = t.Clone()
		if t.uncategorize(id) {
			m.txs[txID] = t
		}
	}
	return nil
}

func (m *MemoryStore) CreateRule(_ context.Context, r Rule) (Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := CheckRule(IndexCategories(m.categories), r); err != nil {
		return Rule{}, err
	}
	r.ID = 0
	for _, cur := range m.rules {
		r.ID = max(r.ID, cur.ID)
	}
	r.ID++
	m.rules = append(m.rules, r)
	return r, nil
}

func (m *MemoryStore) UpdateRule(_ context.Context, r Rule) (Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.rules, func(cur Rule) bool { return cur.ID == r.ID })
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: rule %d", ErrNotFound, r.ID)
	}
	if err := CheckRule(IndexCategories(m.categories), r); err != nil {
		return Rule{}, err
	}
	m.rules[i] = r
	return r, nil
}

func (m *MemoryStore) DeleteRule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.rules, func(cur Rule) bool { return cur.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: rule %d", ErrNotFound, id)
	}
	m.rules = slices.Delete(m.rules, i, i+1)
	return nil
}
