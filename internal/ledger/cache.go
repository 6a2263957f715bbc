package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jask/finledger/internal/daterange"
)

// DefaultPageSize is the number of transactions fetched per page.
const DefaultPageSize = 100

// State is everything the cache holds for one session.
type State struct {
	Groups       []Group
	Categories   []Category
	Rules        []Rule
	Window       []TransactionView
	Loaded       bool
	Selected     *int64
	Summary      []Summary
	CategorySums CategorySums
	Filter       Query
	// Expanded marks groups shown open in the account list.
	Expanded map[int64]bool
}

type Options struct {
	PageSize int
	Log      *zap.Logger
	// Today returns the current date, used for the initial range.
	Today func() time.Time
}

// Cache is a filtered, paginated projection of the ledger kept consistent
// with the source. Filter changes refetch; confirmed mutations are patched
// in place.
type Cache struct {
	src      Source
	log      *zap.Logger
	pageSize int
	today    func() time.Time

	mu      sync.Mutex
	session uuid.UUID
	// gen is bumped whenever a full fetch starts or is applied; epoch when
	// the window changes. Responses captured under older values are dropped.
	gen     uint64
	epoch   uint64
	loading bool
	state   State
	cats    CategoryIndex
}

func New(src Source, opts Options) *Cache {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Today == nil {
		opts.Today = func() time.Time { return daterange.Today(time.Local) }
	}
	c := &Cache{src: src, log: opts.Log, pageSize: opts.PageSize, today: opts.Today}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.session = uuid.New()
	c.gen++
	c.epoch++
	c.loading = false
	c.state = State{
		Filter:   Query{Range: daterange.CurrentMonth(c.today())},
		Expanded: map[int64]bool{},
	}
	c.cats = CategoryIndex{}
}

// Reset clears the state and starts a new session. Responses to fetches
// started before the reset are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.session
	c.reset()
	c.log.Debug("cache reset", zap.Stringer("session", old), zap.Stringer("next", c.session))
}

func (c *Cache) Session() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetPageSize changes the size of pages fetched from now on.
func (c *Cache) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageSize = n
}

// State returns a copy of the current state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Groups = cloneGroups(c.state.Groups)
	s.Categories = slices.Clone(c.state.Categories)
	s.Rules = slices.Clone(c.state.Rules)
	s.Window = make([]TransactionView, len(c.state.Window))
	for i, v := range c.state.Window {
		s.Window[i] = v.clone()
	}
	s.Summary = slices.Clone(c.state.Summary)
	s.CategorySums = CategorySums{
		Expense: slices.Clone(c.state.CategorySums.Expense),
		Income:  slices.Clone(c.state.CategorySums.Income),
	}
	s.Filter = c.state.Filter.clone()
	if c.state.Selected != nil {
		id := *c.state.Selected
		s.Selected = &id
	}
	s.Expanded = make(map[int64]bool, len(c.state.Expanded))
	for k, v := range c.state.Expanded {
		s.Expanded[k] = v
	}
	return s
}

func cloneGroups(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		g.Accounts = slices.Clone(g.Accounts)
		g.Permissions = slices.Clone(g.Permissions)
		out[i] = g
	}
	return out
}

// windowResult is what a full requery replaces atomically.
type windowResult struct {
	size    int
	rows    []Transaction
	summary []Summary
	sums    CategorySums
}

func (c *Cache) fetchWindow(ctx context.Context, q Query, size int) (windowResult, error) {
	res := windowResult{size: size}
	var err error
	if res.rows, err = c.src.Transactions(ctx, q, 0, res.size); err != nil {
		return res, fmt.Errorf("fetch transactions: %w", err)
	}
	if res.summary, err = c.src.Summary(ctx, q.AccountIDs, q.Range); err != nil {
		return res, fmt.Errorf("fetch summary: %w", err)
	}
	if res.sums, err = c.fetchCategorySums(ctx, q); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Cache) fetchCategorySums(ctx context.Context, q Query) (CategorySums, error) {
	expense, err := c.src.CategorySummary(ctx, TypeExpense, q.AccountIDs, q.Range)
	if err != nil {
		return CategorySums{}, fmt.Errorf("fetch expense categories: %w", err)
	}
	income, err := c.src.CategorySummary(ctx, TypeIncome, q.AccountIDs, q.Range)
	if err != nil {
		return CategorySums{}, fmt.Errorf("fetch income categories: %w", err)
	}
	return CategorySums{Expense: expense, Income: income}, nil
}

// applyWindow must be called with mu held.
func (c *Cache) applyWindow(res windowResult) {
	views := make([]TransactionView, 0, len(res.rows))
	for _, t := range res.rows {
		views = append(views, newView(t, c.state.Filter.Selects))
	}
	c.state.Window = views
	c.state.Loaded = len(res.rows) < res.size
	c.state.Summary = res.summary
	c.state.CategorySums = res.sums
	if c.state.Selected != nil && indexOf(views, *c.state.Selected) < 0 {
		c.state.Selected = nil
	}
	c.gen++
	c.epoch++
	c.loading = false
}

// Init loads groups, categories and rules, then the first page for the
// current filter.
func (c *Cache) Init(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.loading = false
	gen, q, sid, size := c.gen, c.state.Filter.clone(), c.session, c.pageSize
	c.mu.Unlock()

	start := time.Now()
	groups, err := c.src.Groups(ctx)
	if err != nil {
		return fmt.Errorf("fetch groups: %w", err)
	}
	cats, err := c.src.Categories(ctx)
	if err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}
	rules, err := c.src.Rules(ctx)
	if err != nil {
		return fmt.Errorf("fetch rules: %w", err)
	}
	res, err := c.fetchWindow(ctx, q, size)
	if err != nil {
		c.log.Warn("init failed", zap.Stringer("session", sid), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("dropped stale init", zap.Stringer("session", sid))
		return nil
	}
	c.state.Groups = groups
	c.state.Categories = cats
	c.state.Rules = rules
	c.cats = IndexCategories(cats)
	c.applyWindow(res)
	c.log.Debug("cache initialised",
		zap.Stringer("session", c.session),
		zap.Int("groups", len(groups)),
		zap.Int("rows", len(res.rows)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// requery refetches the window for the filter set by update. A failed fetch
// leaves the previous window in place.
func (c *Cache) requery(ctx context.Context, kind string, update func(*State) bool) error {
	c.mu.Lock()
	if !update(&c.state) {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	c.loading = false
	gen, q, sid, size := c.gen, c.state.Filter.clone(), c.session, c.pageSize
	c.mu.Unlock()

	start := time.Now()
	res, err := c.fetchWindow(ctx, q, size)
	if err != nil {
		c.log.Warn("requery failed", zap.Stringer("session", sid), zap.String("filter", kind), zap.Error(err))
		return fmt.Errorf("requery %s: %w", kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("dropped stale response", zap.Stringer("session", sid), zap.String("filter", kind))
		return nil
	}
	c.applyWindow(res)
	c.log.Debug("requery",
		zap.Stringer("session", sid),
		zap.String("filter", kind),
		zap.Int("rows", len(res.rows)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// SetAccounts selects accounts. Groups left partially selected are expanded
// and a currency filter no selected account uses is cleared.
func (c *Cache) SetAccounts(ctx context.Context, ids []int64) error {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return c.requery(ctx, "accounts", func(s *State) bool {
		s.Filter.AccountIDs = ids
		for _, g := range s.Groups {
			live, picked := 0, 0
			for _, a := range g.Accounts {
				if a.Deleted {
					continue
				}
				live++
				if slices.Contains(ids, a.ID) {
					picked++
				}
			}
			if picked > 0 && picked < live {
				s.Expanded[g.ID] = true
			}
		}
		if s.Filter.Currency != "" && !slices.Contains(currencies(selectedAccounts(s)), s.Filter.Currency) {
			s.Filter.Currency = ""
		}
		return true
	})
}

// SetCategory filters by category id; nil clears the filter.
func (c *Cache) SetCategory(ctx context.Context, id *int64) error {
	return c.requery(ctx, "category", func(s *State) bool {
		if id == nil {
			s.Filter.CategoryID = nil
			return true
		}
		v := *id
		s.Filter.CategoryID = &v
		return true
	})
}

func (c *Cache) SetCurrency(ctx context.Context, currency string) error {
	return c.requery(ctx, "currency", func(s *State) bool {
		s.Filter.Currency = currency
		return true
	})
}

func (c *Cache) SetSearch(ctx context.Context, search string) error {
	return c.requery(ctx, "search", func(s *State) bool {
		if s.Filter.Search == search {
			return false
		}
		s.Filter.Search = search
		return true
	})
}

// SetRange changes the date range. A range equal to the current one does
// not refetch.
func (c *Cache) SetRange(ctx context.Context, r daterange.Range) error {
	return c.requery(ctx, "range", func(s *State) bool {
		if s.Filter.Range.Same(r) {
			return false
		}
		s.Filter.Range = r
		return true
	})
}

// LoadMore appends the next page. It does nothing when everything is loaded
// or a page is already being fetched.
func (c *Cache) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Loaded || c.loading {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	gen, epoch, q, offset, sid := c.gen, c.epoch, c.state.Filter.clone(), len(c.state.Window), c.session
	size := c.pageSize
	c.mu.Unlock()

	rows, err := c.src.Transactions(ctx, q, offset, size)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || epoch != c.epoch {
		c.log.Debug("dropped stale page", zap.Stringer("session", sid), zap.Int("offset", offset))
		return nil
	}
	c.loading = false
	if err != nil {
		c.log.Warn("load more failed", zap.Stringer("session", sid), zap.Int("offset", offset), zap.Error(err))
		return fmt.Errorf("load more: %w", err)
	}
	for _, t := range rows {
		if indexOf(c.state.Window, t.ID) >= 0 {
			continue
		}
		c.state.Window = append(c.state.Window, newView(t, c.state.Filter.Selects))
	}
	c.state.Loaded = len(rows) < size
	c.epoch++
	c.log.Debug("page loaded", zap.Stringer("session", sid), zap.Int("offset", offset), zap.Int("rows", len(rows)))
	return nil
}

// RefreshCategorySums refetches the category report. Category totals are
// never patched locally.
func (c *Cache) RefreshCategorySums(ctx context.Context) error {
	c.mu.Lock()
	gen, q, sid := c.gen, c.state.Filter.clone(), c.session
	c.mu.Unlock()

	sums, err := c.fetchCategorySums(ctx, q)
	if err != nil {
		c.log.Warn("category refresh failed", zap.Stringer("session", sid), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("dropped stale category sums", zap.Stringer("session", sid))
		return nil
	}
	c.state.CategorySums = sums
	return nil
}

// Refresh refetches the groups and the loaded part of the window for the
// current filter. It follows a mutation ApplyMutation could not patch
// exactly.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.loading = false
	gen, q, sid := c.gen, c.state.Filter.clone(), c.session
	pages := max(1, (len(c.state.Window)+c.pageSize-1)/c.pageSize)
	size := pages * c.pageSize
	if c.state.Loaded && size == len(c.state.Window) {
		size++
	}
	c.mu.Unlock()

	groups, err := c.src.Groups(ctx)
	if err != nil {
		return fmt.Errorf("refresh groups: %w", err)
	}
	res, err := c.fetchWindow(ctx, q, size)
	if err != nil {
		c.log.Warn("refresh failed", zap.Stringer("session", sid), zap.Error(err))
		return fmt.Errorf("refresh: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("dropped stale refresh", zap.Stringer("session", sid))
		return nil
	}
	c.state.Groups = groups
	c.applyWindow(res)
	c.log.Debug("refreshed", zap.Stringer("session", sid), zap.Int("rows", len(res.rows)))
	return nil
}

// ReloadCatalog refetches categories and rules after an edit, clears a
// category filter whose category is gone and refreshes the window so rows
// and category totals use the new tree.
func (c *Cache) ReloadCatalog(ctx context.Context) error {
	sid := c.Session()
	cats, err := c.src.Categories(ctx)
	if err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}
	rules, err := c.src.Rules(ctx)
	if err != nil {
		return fmt.Errorf("fetch rules: %w", err)
	}

	c.mu.Lock()
	if sid != c.session {
		c.mu.Unlock()
		c.log.Debug("dropped stale catalog", zap.Stringer("session", sid))
		return nil
	}
	c.state.Categories = cats
	c.state.Rules = rules
	c.cats = IndexCategories(cats)
	if id := c.state.Filter.CategoryID; id != nil && *id > int64(TypeCorrection) {
		if _, ok := c.cats[*id]; !ok {
			c.state.Filter.CategoryID = nil
		}
	}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Select moves the cursor; nil clears it.
func (c *Cache) Select(id *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == nil {
		c.state.Selected = nil
		return
	}
	v := *id
	c.state.Selected = &v
}

// ApplyMutation patches the window, balances and summary after the source
// confirmed a create (removed false) or delete (removed true) of t. A create
// for a transaction already in the window is treated as an update.
//
// It reports whether the patch is exact. It is not when an account t touches
// has newer transactions outside the window, since a correction among them
// may have absorbed t's effect; the caller must then Refresh.
func (c *Cache) ApplyMutation(t Transaction, removed bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	var exact bool
	switch {
	case removed:
		exact = c.remove(t)
	case indexOf(c.state.Window, t.ID) >= 0:
		exact = c.remove(t)
		exact = c.insert(t) && exact
	default:
		exact = c.insert(t)
	}
	c.mutated(t, removed, exact)
	return exact
}

// ApplyUpdate replaces old with updated: the old value is removed with its
// effect undone, then the new value is inserted. The result is as for
// ApplyMutation.
func (c *Cache) ApplyUpdate(old, updated Transaction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.state.Window, old.ID); i >= 0 {
		old = c.state.Window[i].Tx
	}
	exact := c.remove(old)
	exact = c.insert(updated) && exact
	c.mutated(updated, false, exact)
	return exact
}

func (c *Cache) mutated(t Transaction, removed, exact bool) {
	c.epoch++
	c.loading = false
	c.log.Debug("mutation applied",
		zap.Stringer("session", c.session),
		zap.Int64("id", t.ID),
		zap.Stringer("type", t.Type()),
		zap.Bool("removed", removed),
		zap.Bool("exact", exact),
		zap.Int("rows", len(c.state.Window)))
}

// complete reports whether the window holds every transaction on the account
// newer than t, where pos is t's place in the window. Only then do the
// running balances and the first newer correction sit in the window.
func (c *Cache) complete(t *Transaction, accountID int64, pos int) bool {
	q := &c.state.Filter
	if !q.BalancesTracked() || !q.Selects(accountID) {
		return false
	}
	if pos == len(c.state.Window) && !c.state.Loaded {
		return false
	}
	if !q.Range.From.IsZero() && daterange.Day(t.Opdate).Before(q.Range.From) {
		return false
	}
	if !q.Range.To.IsZero() && q.Range.To.Before(daterange.Day(c.today())) {
		return false
	}
	a := c.account(accountID)
	if a == nil || a.Balance == nil {
		return false
	}
	return q.Currency == "" || q.Currency == a.Currency
}

// completeFor returns the accounts of t that complete accepts.
func (c *Cache) completeFor(t *Transaction, pos int) (map[int64]bool, bool) {
	ok := map[int64]bool{}
	exact := true
	for _, l := range t.Legs() {
		if c.complete(t, l.AccountID, pos) {
			ok[l.AccountID] = true
		} else {
			exact = false
		}
	}
	return ok, exact
}

func (c *Cache) remove(t Transaction) bool {
	idx := indexOf(c.state.Window, t.ID)
	pos := idx
	if idx >= 0 {
		t = c.state.Window[idx].Tx.Clone()
	} else {
		t = t.Clone()
		pos = insertionIndex(c.state.Window, &t)
	}
	known, exact := c.completeFor(&t, pos)
	deltas, corrections := propagate(c.state.Window, pos, &t, true, known, c.state.Filter.Selects)
	if idx >= 0 {
		c.state.Window = slices.Delete(c.state.Window, idx, idx+1)
		if c.state.Selected != nil && *c.state.Selected == t.ID {
			c.state.Selected = nil
		}
	}
	c.patchAggregates(&t, -1, deltas, corrections)
	return exact
}

func (c *Cache) insert(t Transaction) bool {
	t = t.Clone()
	pos := insertionIndex(c.state.Window, &t)
	known, exact := c.completeFor(&t, pos)
	deltas, corrections := propagate(c.state.Window, pos, &t, false, known, c.state.Filter.Selects)
	if c.state.Filter.Matches(&t, c.cats) && (pos < len(c.state.Window) || c.state.Loaded) {
		c.fillBalances(&t, pos, known)
		c.state.Window = slices.Insert(c.state.Window, pos, newView(t, c.state.Filter.Selects))
	}
	c.patchAggregates(&t, 1, deltas, corrections)
	return exact
}

// fillBalances sets the running balances of a transaction about to be
// inserted at pos, unless the source already supplied them. Legs on accounts
// the window does not fully cover are left unset.
func (c *Cache) fillBalances(t *Transaction, pos int, known map[int64]bool) {
	tracked := c.state.Filter.BalancesTracked()
	for _, l := range t.Legs() {
		if !tracked {
			l.Balance = nil
			continue
		}
		if l.Balance != nil {
			continue
		}
		if !known[l.AccountID] {
			continue
		}
		l.Balance = c.balanceAt(t, l.AccountID, pos)
	}
}

func legBalance(t *Transaction, accountID int64) *decimal.Decimal {
	for _, l := range t.Legs() {
		if l.AccountID == accountID {
			return l.Balance
		}
	}
	return nil
}

func (c *Cache) balanceAt(t *Transaction, accountID int64, pos int) *decimal.Decimal {
	w := c.state.Window
	for j := pos; j < len(w); j++ {
		if e := &w[j].Tx; e.Touches(accountID) {
			if b := legBalance(e, accountID); b != nil {
				v := b.Add(t.Effect(accountID))
				return &v
			}
			break
		}
	}
	for j := pos - 1; j >= 0; j-- {
		if e := &w[j].Tx; e.Touches(accountID) {
			if b := legBalance(e, accountID); b != nil {
				v := b.Sub(e.Effect(accountID))
				return &v
			}
			break
		}
	}
	// Nothing newer on the account: t becomes its latest transaction.
	if a := c.account(accountID); a != nil && a.Balance != nil {
		v := a.Balance.Add(t.Effect(accountID))
		return &v
	}
	return nil
}

func (c *Cache) account(id int64) *Account {
	for gi := range c.state.Groups {
		for ai := range c.state.Groups[gi].Accounts {
			if c.state.Groups[gi].Accounts[ai].ID == id {
				return &c.state.Groups[gi].Accounts[ai]
			}
		}
	}
	return nil
}

// patchAggregates moves account balances by the deltas no correction
// absorbed and updates the summary for t and every rewritten correction.
func (c *Cache) patchAggregates(t *Transaction, sign int, deltas map[int64]decimal.Decimal, corrections []absorbed) {
	for id, d := range deltas {
		a := c.account(id)
		if a == nil || a.Balance == nil {
			continue
		}
		b := a.Balance.Add(d)
		a.Balance = &b
	}
	c.patchSummary(t, sign)
	for _, cr := range corrections {
		c.patchSummary(&cr.before, -1)
		c.patchSummary(cr.after, 1)
	}
}

func (c *Cache) patchSummary(t *Transaction, sign int) {
	if !c.state.Filter.Range.Contains(t.Opdate) {
		return
	}
	c.state.Summary = CompactSummary(Contribute(c.state.Summary, t, c.state.Filter.Selects, sign))
}
