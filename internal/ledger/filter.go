package ledger

import (
	"slices"
	"sort"
	"strings"
)

// Newer reports whether a sorts before b in the window: a later operation
// date first, then the higher id.
func Newer(a, b *Transaction) bool {
	if !a.Opdate.Equal(b.Opdate) {
		return a.Opdate.After(b.Opdate)
	}
	return a.ID > b.ID
}

// insertionIndex is the position of the first entry not newer than t.
func insertionIndex(window []TransactionView, t *Transaction) int {
	return sort.Search(len(window), func(i int) bool {
		return !Newer(&window[i].Tx, t)
	})
}

func indexOf(window []TransactionView, id int64) int {
	for i := range window {
		if window[i].Tx.ID == id {
			return i
		}
	}
	return -1
}

// CategoryIndex looks categories up by id.
type CategoryIndex map[int64]Category

func IndexCategories(cats []Category) CategoryIndex {
	ix := make(CategoryIndex, len(cats))
	for _, c := range cats {
		ix[c.ID] = c
	}
	return ix
}

// Within reports whether id is root or one of its descendants.
func (ix CategoryIndex) Within(id, root int64) bool {
	for depth := 0; depth <= len(ix); depth++ {
		if id == root {
			return true
		}
		c, ok := ix[id]
		if !ok || c.ParentID == nil {
			return false
		}
		id = *c.ParentID
	}
	return false
}

// Root returns the type of the root category id belongs to.
func (ix CategoryIndex) Root(id int64) (TxType, bool) {
	c, ok := ix[id]
	if !ok {
		return 0, false
	}
	return c.Type, true
}

// Subtree returns root and every descendant id.
func (ix CategoryIndex) Subtree(root int64) []int64 {
	var ids []int64
	for id := range ix {
		if ix.Within(id, root) {
			ids = append(ids, id)
		}
	}
	if _, ok := ix[root]; !ok {
		ids = append(ids, root)
	}
	slices.Sort(ids)
	return ids
}

// Selects reports whether the account is part of the query. No accounts
// means all of them.
func (q Query) Selects(accountID int64) bool {
	return len(q.AccountIDs) == 0 || slices.Contains(q.AccountIDs, accountID)
}

// BalancesTracked reports whether running balances are meaningful for the
// rows the query returns.
func (q Query) BalancesTracked() bool {
	return q.Search == "" && q.CategoryID == nil
}

func (q Query) clone() Query {
	q.AccountIDs = slices.Clone(q.AccountIDs)
	if q.CategoryID != nil {
		id := *q.CategoryID
		q.CategoryID = &id
	}
	return q
}

// Matches reports whether the source would return t for the query.
func (q Query) Matches(t *Transaction, cats CategoryIndex) bool {
	if !q.Range.Contains(t.Opdate) {
		return false
	}
	legs := t.Legs()
	if len(q.AccountIDs) > 0 && !slices.ContainsFunc(legs, func(l *Leg) bool { return q.Selects(l.AccountID) }) {
		return false
	}
	if q.Currency != "" && !slices.ContainsFunc(legs, func(l *Leg) bool { return l.Currency == q.Currency }) {
		return false
	}
	if q.Search != "" && !MatchesSearch(t, q.Search, cats) {
		return false
	}
	if q.CategoryID != nil && !MatchesCategory(t, *q.CategoryID, cats) {
		return false
	}
	return true
}

// MatchesSearch is a case-insensitive substring match on party, details and
// the name of the transaction's category.
func MatchesSearch(t *Transaction, search string, cats CategoryIndex) bool {
	s := strings.ToLower(search)
	if strings.Contains(strings.ToLower(t.Party), s) || strings.Contains(strings.ToLower(t.Details), s) {
		return true
	}
	c, ok := cats[t.CategoryID()]
	return ok && strings.Contains(strings.ToLower(c.Name), s)
}

// MatchesCategory applies a category filter id to t.
func MatchesCategory(t *Transaction, id int64, cats CategoryIndex) bool {
	switch id {
	case NoCategoryExpense:
		return t.Type() == TypeExpense && t.CategoryID() == 0
	case NoCategoryIncome:
		return t.Type() == TypeIncome && t.CategoryID() == 0
	case int64(TypeTransfer), int64(TypeExpense), int64(TypeIncome), int64(TypeCorrection):
		return t.Type() == TxType(id)
	}
	cat := t.CategoryID()
	return cat != 0 && cats.Within(cat, id)
}
