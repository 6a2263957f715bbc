package ledger

import "github.com/shopspring/decimal"

// absorbed records a correction rewritten during propagation.
type absorbed struct {
	before Transaction
	after  *Transaction
}

// propagate applies the balance effect of t on the known accounts, undone
// when removed, to every window entry newer than position pos. It walks from the oldest affected
// entry to the newest. The first correction met on an account takes the whole
// delta and stops it, so the balance the correction pins does not move.
//
// It returns the deltas that ran off the top of the window, keyed by
// account, and the corrections it rewrote. The walk is linear in pos.
func propagate(window []TransactionView, pos int, t *Transaction, removed bool, known map[int64]bool, selects func(int64) bool) (map[int64]decimal.Decimal, []absorbed) {
	deltas := map[int64]decimal.Decimal{}
	for _, l := range t.Legs() {
		if !known[l.AccountID] {
			continue
		}
		d := t.Effect(l.AccountID)
		if removed {
			d = d.Neg()
		}
		deltas[l.AccountID] = d
	}

	var corrections []absorbed
	for j := pos - 1; j >= 0 && len(deltas) > 0; j-- {
		e := &window[j].Tx
		if c, ok := e.Body.(*Correction); ok {
			d, hit := deltas[c.Leg.AccountID]
			if !hit {
				continue
			}
			before := e.Clone()
			c.Absorb(d)
			delete(deltas, c.Leg.AccountID)
			corrections = append(corrections, absorbed{before: before, after: e})
			window[j].derive(selects)
			continue
		}
		touched := false
		for _, l := range e.Legs() {
			d, hit := deltas[l.AccountID]
			if !hit || l.Balance == nil {
				continue
			}
			b := l.Balance.Add(d)
			l.Balance = &b
			touched = true
		}
		if touched {
			window[j].derive(selects)
		}
	}
	return deltas, corrections
}
