package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/money"
)

// BalanceRef is the running balance shown next to a transaction.
type BalanceRef struct {
	AccountID int64
	Value     decimal.Decimal
}

// TransactionView is a transaction as displayed for the current account
// selection: the amount is taken from the selected side, negative when the
// selected account is debited.
type TransactionView struct {
	Tx      Transaction
	Amount  money.Amount
	Balance *BalanceRef
}

func newView(t Transaction, selects func(int64) bool) TransactionView {
	v := TransactionView{Tx: t}
	v.derive(selects)
	return v
}

func (v *TransactionView) derive(selects func(int64) bool) {
	account, recipient := v.Tx.AccountLeg(), v.Tx.RecipientLeg()
	leg, sign := account, -1
	if account == nil || (recipient != nil && !selects(account.AccountID)) {
		leg, sign = recipient, 1
	}
	v.Amount = money.New(leg.Amount, leg.Currency, leg.Scale)
	if sign < 0 {
		v.Amount = v.Amount.Neg()
	}
	v.Balance = nil
	if leg.Balance != nil {
		v.Balance = &BalanceRef{AccountID: leg.AccountID, Value: *leg.Balance}
	}
}

func (v TransactionView) clone() TransactionView {
	v.Tx = v.Tx.Clone()
	if v.Balance != nil {
		b := *v.Balance
		v.Balance = &b
	}
	return v
}
