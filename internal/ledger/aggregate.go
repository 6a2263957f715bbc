package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/money"
)

// SortOldestFirst orders transactions by operation date, then id.
func SortOldestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return Newer(&txs[j], &txs[i]) })
}

// SortNewestFirst is the window order.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return Newer(&txs[i], &txs[j]) })
}

// RunningBalances sets the balance of every leg in history, which must be
// sorted oldest first, starting each account from start. It returns the
// final balance of every account seen.
func RunningBalances(history []Transaction, start func(accountID int64) decimal.Decimal) map[int64]decimal.Decimal {
	balances := map[int64]decimal.Decimal{}
	for i := range history {
		t := &history[i]
		for _, l := range t.Legs() {
			b, ok := balances[l.AccountID]
			if !ok {
				b = start(l.AccountID)
			}
			b = b.Add(t.Effect(l.AccountID))
			balances[l.AccountID] = b
			v := b
			l.Balance = &v
		}
	}
	return balances
}

// Pin keeps corrections anchored when t is added, or removed if removed is
// set: for each account t touches, the first correction newer than t on that
// account absorbs t's effect. It returns the corrections it rewrote.
func Pin(history []*Transaction, t *Transaction, removed bool) []*Transaction {
	var changed []*Transaction
	for _, l := range t.Legs() {
		var first *Transaction
		for _, h := range history {
			if h.ID == t.ID || h.Type() != TypeCorrection || !h.Touches(l.AccountID) || !Newer(h, t) {
				continue
			}
			if first == nil || Newer(first, h) {
				first = h
			}
		}
		if first == nil {
			continue
		}
		d := t.Effect(l.AccountID)
		if removed {
			d = d.Neg()
		}
		first.Body.(*Correction).Absorb(d)
		changed = append(changed, first)
	}
	return changed
}

// BuildSummary aggregates txs that fall inside q's range for q's accounts.
func BuildSummary(txs []Transaction, q Query) []Summary {
	var rows []Summary
	for i := range txs {
		if q.Range.Contains(txs[i].Opdate) {
			rows = Contribute(rows, &txs[i], q.Selects, 1)
		}
	}
	return CompactSummary(rows)
}

// NoCategoryName labels the row collecting uncategorized transactions.
const NoCategoryName = "No Category"

// BuildCategorySums totals txs of type typ per top-level category and
// currency. Uncategorized transactions are reported under the type root.
// Rows follow the depth-first order of cats.
func BuildCategorySums(txs []Transaction, typ TxType, cats []Category, q Query) []CategorySum {
	ix := IndexCategories(cats)
	totals := map[int64]money.Totals{}
	for i := range txs {
		t := &txs[i]
		if t.Type() != typ || !q.Range.Contains(t.Opdate) {
			continue
		}
		leg := t.AccountLeg()
		if typ == TypeIncome {
			leg = t.RecipientLeg()
		}
		if leg == nil || !q.Selects(leg.AccountID) {
			continue
		}
		top := topLevel(ix, t.CategoryID(), typ)
		if totals[top] == nil {
			totals[top] = money.Totals{}
		}
		totals[top].Add(money.New(leg.Amount, leg.Currency, leg.Scale))
	}

	var out []CategorySum
	root := int64(typ)
	if t, ok := totals[root]; ok {
		out = append(out, CategorySum{CategoryID: root, Name: NoCategoryName, Amounts: t.Sorted()})
	}
	for _, c := range cats {
		if c.ID == root {
			continue
		}
		if t, ok := totals[c.ID]; ok {
			out = append(out, CategorySum{CategoryID: c.ID, Name: c.Name, Amounts: t.Sorted()})
		}
	}
	return out
}

// topLevel walks up to the child of the type root.
func topLevel(ix CategoryIndex, id int64, typ TxType) int64 {
	root := int64(typ)
	if id == 0 {
		return root
	}
	for depth := 0; depth <= len(ix); depth++ {
		c, ok := ix[id]
		if !ok || c.ParentID == nil || *c.ParentID == root {
			return id
		}
		id = *c.ParentID
	}
	return id
}
