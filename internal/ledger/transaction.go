package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Leg is one side of a transaction on a single account. Amount is always a
// magnitude; the side the leg sits on gives its sign.
type Leg struct {
	AccountID int64
	Currency  string
	Scale     int32
	Amount    decimal.Decimal
	// Balance is the account's running balance after the transaction, nil
	// when the source did not compute it.
	Balance *decimal.Decimal
}

func (l Leg) clone() Leg {
	if l.Balance != nil {
		b := *l.Balance
		l.Balance = &b
	}
	return l
}

// Body is the variant part of a transaction. It is implemented by *Expense,
// *Income, *Transfer and *Correction only.
type Body interface {
	Type() TxType
	cloneBody() Body
}

// Expense debits one account.
type Expense struct {
	Account    Leg
	CategoryID int64
}

// Income credits one account.
type Income struct {
	Recipient  Leg
	CategoryID int64
}

// Transfer moves money between two accounts and has no category.
type Transfer struct {
	Account   Leg
	Recipient Leg
}

// Correction adjusts one account so that its balance reaches an expected
// value. Up means the leg is credited.
type Correction struct {
	Leg        Leg
	Up         bool
	CategoryID int64
}

func (*Expense) Type() TxType    { return TypeExpense }
func (*Income) Type() TxType     { return TypeIncome }
func (*Transfer) Type() TxType   { return TypeTransfer }
func (*Correction) Type() TxType { return TypeCorrection }

func (b *Expense) cloneBody() Body {
	c := *b
	c.Account = b.Account.clone()
	return &c
}

func (b *Income) cloneBody() Body {
	c := *b
	c.Recipient = b.Recipient.clone()
	return &c
}

func (b *Transfer) cloneBody() Body {
	return &Transfer{Account: b.Account.clone(), Recipient: b.Recipient.clone()}
}

func (b *Correction) cloneBody() Body {
	c := *b
	c.Leg = b.Leg.clone()
	return &c
}

// Signed is the adjustment applied to the account, positive when Up.
func (b *Correction) Signed() decimal.Decimal {
	if b.Up {
		return b.Leg.Amount
	}
	return b.Leg.Amount.Neg()
}

// Absorb keeps the balance after the correction fixed while the balance
// before it moves by delta. The correction switches side when the required
// adjustment changes sign.
func (b *Correction) Absorb(delta decimal.Decimal) {
	s := b.Signed().Sub(delta)
	b.Up = s.Sign() >= 0
	b.Leg.Amount = s.Abs()
}

// Transaction is a single ledger entry.
type Transaction struct {
	ID      int64
	Opdate  time.Time
	Party   string
	Details string
	Body    Body
}

func (t Transaction) Type() TxType { return t.Body.Type() }

// AccountLeg returns the debited leg, or nil.
func (t *Transaction) AccountLeg() *Leg {
	switch b := t.Body.(type) {
	case *Expense:
		return &b.Account
	case *Transfer:
		return &b.Account
	case *Correction:
		if !b.Up {
			return &b.Leg
		}
	}
	return nil
}

// RecipientLeg returns the credited leg, or nil.
func (t *Transaction) RecipientLeg() *Leg {
	switch b := t.Body.(type) {
	case *Income:
		return &b.Recipient
	case *Transfer:
		return &b.Recipient
	case *Correction:
		if b.Up {
			return &b.Leg
		}
	}
	return nil
}

// Legs returns the account leg followed by the recipient leg, skipping absent ones.
func (t *Transaction) Legs() []*Leg {
	legs := make([]*Leg, 0, 2)
	if l := t.AccountLeg(); l != nil {
		legs = append(legs, l)
	}
	if l := t.RecipientLeg(); l != nil {
		legs = append(legs, l)
	}
	return legs
}

func (t Transaction) CategoryID() int64 {
	switch b := t.Body.(type) {
	case *Expense:
		return b.CategoryID
	case *Income:
		return b.CategoryID
	case *Correction:
		return b.CategoryID
	}
	return 0
}

// Touches reports whether any leg is on the account.
func (t *Transaction) Touches(accountID int64) bool {
	for _, l := range t.Legs() {
		if l.AccountID == accountID {
			return true
		}
	}
	return false
}

// Effect is the signed change the transaction makes to an account's balance.
func (t *Transaction) Effect(accountID int64) decimal.Decimal {
	d := decimal.Zero
	if l := t.AccountLeg(); l != nil && l.AccountID == accountID {
		d = d.Sub(l.Amount)
	}
	if l := t.RecipientLeg(); l != nil && l.AccountID == accountID {
		d = d.Add(l.Amount)
	}
	return d
}

func (t Transaction) Clone() Transaction {
	if t.Body != nil {
		t.Body = t.Body.cloneBody()
	}
	return t
}

// Validate checks the invariants of each variant.
func (t *Transaction) Validate() error {
	if t.Body == nil {
		return fmt.Errorf("%w: transaction has no body", ErrValidation)
	}
	if t.Opdate.IsZero() {
		return fmt.Errorf("%w: operation date is required", ErrValidation)
	}
	positive := func(name string, l Leg) error {
		if l.AccountID == 0 {
			return fmt.Errorf("%w: %s account is required", ErrValidation, name)
		}
		if l.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: %s amount must be positive", ErrValidation, name)
		}
		return nil
	}
	switch b := t.Body.(type) {
	case *Expense:
		return positive("account", b.Account)
	case *Income:
		return positive("recipient", b.Recipient)
	case *Transfer:
		if err := positive("account", b.Account); err != nil {
			return err
		}
		if err := positive("recipient", b.Recipient); err != nil {
			return err
		}
		if b.Account.AccountID == b.Recipient.AccountID {
			return fmt.Errorf("%w: transfer to the same account", ErrValidation)
		}
	case *Correction:
		if b.Leg.AccountID == 0 {
			return fmt.Errorf("%w: correction account is required", ErrValidation)
		}
		if b.Leg.Amount.Sign() < 0 {
			return fmt.Errorf("%w: correction amount is a magnitude", ErrValidation)
		}
	}
	return nil
}

// Flat is the row and wire form of a transaction: the debited side as
// account/debit, the credited side as recipient/credit.
type Flat struct {
	ID                int64            `json:"id"`
	Type              *TxType          `json:"type,omitempty"`
	Opdate            time.Time        `json:"opdate"`
	AccountID         *int64           `json:"account_id,omitempty"`
	Debit             *decimal.Decimal `json:"debit,omitempty"`
	AccountCurrency   string           `json:"account_currency,omitempty"`
	AccountScale      int32            `json:"account_scale,omitempty"`
	AccountBalance    *decimal.Decimal `json:"account_balance,omitempty"`
	RecipientID       *int64           `json:"recipient_id,omitempty"`
	Credit            *decimal.Decimal `json:"credit,omitempty"`
	RecipientCurrency string           `json:"recipient_currency,omitempty"`
	RecipientScale    int32            `json:"recipient_scale,omitempty"`
	RecipientBalance  *decimal.Decimal `json:"recipient_balance,omitempty"`
	CategoryID        *int64           `json:"category_id,omitempty"`
	Party             string           `json:"party,omitempty"`
	Details           string           `json:"details,omitempty"`
}

// RootResolver returns the type of the root a category belongs to.
type RootResolver func(categoryID int64) (TxType, bool)

// DeriveType infers a transaction type from which legs are present and the
// category: both legs make a transfer, no category gives expense or income
// by the present leg, otherwise the category's root decides.
func DeriveType(hasAccount, hasRecipient bool, categoryID int64, resolve RootResolver) (TxType, error) {
	switch {
	case hasAccount && hasRecipient:
		return TypeTransfer, nil
	case !hasAccount && !hasRecipient:
		return 0, fmt.Errorf("%w: account or recipient is required", ErrValidation)
	}
	if categoryID != 0 && resolve != nil {
		root, ok := resolve(categoryID)
		if !ok {
			return 0, fmt.Errorf("%w: unknown category %d", ErrValidation, categoryID)
		}
		if root == TypeCorrection {
			return TypeCorrection, nil
		}
	}
	if hasAccount {
		return TypeExpense, nil
	}
	return TypeIncome, nil
}

func (f Flat) leg(id *int64, amount *decimal.Decimal, currency string, scale int32, balance *decimal.Decimal) Leg {
	l := Leg{Currency: currency, Scale: scale, Balance: balance}
	if id != nil {
		l.AccountID = *id
	}
	if amount != nil {
		l.Amount = *amount
	}
	return l
}

// Transaction builds the tagged form. When Type is absent it is derived
// with resolve, which may be nil.
func (f Flat) Transaction(resolve RootResolver) (Transaction, error) {
	var cat int64
	if f.CategoryID != nil {
		cat = *f.CategoryID
	}
	hasAccount, hasRecipient := f.AccountID != nil, f.RecipientID != nil
	var typ TxType
	if f.Type != nil {
		typ = *f.Type
	} else {
		var err error
		if typ, err = DeriveType(hasAccount, hasRecipient, cat, resolve); err != nil {
			return Transaction{}, err
		}
	}

	account := f.leg(f.AccountID, f.Debit, f.AccountCurrency, f.AccountScale, f.AccountBalance)
	recipient := f.leg(f.RecipientID, f.Credit, f.RecipientCurrency, f.RecipientScale, f.RecipientBalance)
	t := Transaction{ID: f.ID, Opdate: f.Opdate, Party: f.Party, Details: f.Details}

	switch typ {
	case TypeExpense:
		if !hasAccount || hasRecipient {
			return Transaction{}, fmt.Errorf("%w: expense needs exactly an account", ErrValidation)
		}
		t.Body = &Expense{Account: account, CategoryID: cat}
	case TypeIncome:
		if hasAccount || !hasRecipient {
			return Transaction{}, fmt.Errorf("%w: income needs exactly a recipient", ErrValidation)
		}
		t.Body = &Income{Recipient: recipient, CategoryID: cat}
	case TypeTransfer:
		if !hasAccount || !hasRecipient {
			return Transaction{}, fmt.Errorf("%w: transfer needs account and recipient", ErrValidation)
		}
		t.Body = &Transfer{Account: account, Recipient: recipient}
	case TypeCorrection:
		switch {
		case hasAccount && !hasRecipient:
			t.Body = &Correction{Leg: account, CategoryID: cat}
		case hasRecipient && !hasAccount:
			t.Body = &Correction{Leg: recipient, Up: true, CategoryID: cat}
		default:
			return Transaction{}, fmt.Errorf("%w: correction needs exactly one side", ErrValidation)
		}
	default:
		return Transaction{}, fmt.Errorf("%w: unknown transaction type %d", ErrValidation, typ)
	}
	return t, nil
}

// Flatten returns the row and wire form.
func (t Transaction) Flatten() Flat {
	typ := t.Type()
	f := Flat{ID: t.ID, Type: &typ, Opdate: t.Opdate, Party: t.Party, Details: t.Details}
	if cat := t.CategoryID(); cat != 0 {
		f.CategoryID = &cat
	}
	if l := t.AccountLeg(); l != nil {
		id, amount := l.AccountID, l.Amount
		f.AccountID, f.Debit = &id, &amount
		f.AccountCurrency, f.AccountScale, f.AccountBalance = l.Currency, l.Scale, l.Balance
	}
	if l := t.RecipientLeg(); l != nil {
		id, amount := l.AccountID, l.Amount
		f.RecipientID, f.Credit = &id, &amount
		f.RecipientCurrency, f.RecipientScale, f.RecipientBalance = l.Currency, l.Scale, l.Balance
	}
	return f
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	if t.Body == nil {
		return nil, fmt.Errorf("marshal transaction %d: no body", t.ID)
	}
	return json.Marshal(t.Flatten())
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var f Flat
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	parsed, err := f.Transaction(nil)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// CheckCategory verifies that t's category exists and belongs to the tree of
// t's type.
func (t *Transaction) CheckCategory(ix CategoryIndex) error {
	cat := t.CategoryID()
	if cat == 0 {
		return nil
	}
	root, ok := ix.Root(cat)
	if !ok {
		return fmt.Errorf("%w: unknown category %d", ErrValidation, cat)
	}
	if root != t.Type() {
		return fmt.Errorf("%w: category %d is not a %s category", ErrValidation, cat, t.Type())
	}
	return nil
}
