package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Contribute adds t's effect on the per-currency summary, negated when sign
// is negative. Pure expenses count as debit and pure income as credit. A
// transfer only counts when exactly one side is selected.
func Contribute(rows []Summary, t *Transaction, selects func(int64) bool, sign int) []Summary {
	add := func(l *Leg, field func(*Summary) *decimal.Decimal) {
		i := sort.Search(len(rows), func(i int) bool { return rows[i].Currency >= l.Currency })
		if i == len(rows) || rows[i].Currency != l.Currency {
			rows = append(rows, Summary{})
			copy(rows[i+1:], rows[i:])
			rows[i] = Summary{Currency: l.Currency, Scale: l.Scale}
		}
		amount := l.Amount
		if sign < 0 {
			amount = amount.Neg()
		}
		f := field(&rows[i])
		*f = f.Add(amount)
	}

	account, recipient := t.AccountLeg(), t.RecipientLeg()
	switch {
	case account != nil && recipient == nil:
		if selects(account.AccountID) {
			add(account, func(s *Summary) *decimal.Decimal { return &s.Debit })
		}
	case recipient != nil && account == nil:
		if selects(recipient.AccountID) {
			add(recipient, func(s *Summary) *decimal.Decimal { return &s.Credit })
		}
	case account != nil && recipient != nil:
		from, to := selects(account.AccountID), selects(recipient.AccountID)
		if from && !to {
			add(account, func(s *Summary) *decimal.Decimal { return &s.TransfersDebit })
		}
		if to && !from {
			add(recipient, func(s *Summary) *decimal.Decimal { return &s.TransfersCredit })
		}
	}
	return rows
}

// CompactSummary drops rows that no transaction contributes to.
func CompactSummary(rows []Summary) []Summary {
	out := rows[:0]
	for _, r := range rows {
		if !r.empty() {
			out = append(out, r)
		}
	}
	return out
}
