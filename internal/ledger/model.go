package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/money"
)

// TxType is the kind of a transaction. Root categories use the type value as
// their id, so the numbering is part of the stored data.
type TxType int

const (
	TypeTransfer TxType = iota
	TypeExpense
	TypeIncome
	TypeCorrection
)

func (t TxType) String() string {
	switch t {
	case TypeTransfer:
		return "transfer"
	case TypeExpense:
		return "expense"
	case TypeIncome:
		return "income"
	case TypeCorrection:
		return "correction"
	default:
		return "unknown"
	}
}

// Access is a permission level on a shared group.
type Access int

const (
	Read Access = iota
	Write
	Admin
)

type Permission struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Access Access `json:"access"`
}

// Account holds a running balance in one currency. Balance is nil until the
// source has computed it.
type Account struct {
	ID           int64            `json:"id"`
	GroupID      int64            `json:"group_id"`
	Name         string           `json:"name"`
	FullName     string           `json:"full_name"`
	Currency     string           `json:"currency"`
	Chain        string           `json:"chain,omitempty"`
	Scale        int32            `json:"scale"`
	StartBalance decimal.Decimal  `json:"start_balance"`
	Balance      *decimal.Decimal `json:"balance,omitempty"`
	Deleted      bool             `json:"deleted"`
	Opdate       *time.Time       `json:"opdate,omitempty"`
}

// Group is an ordered set of accounts owned or shared by a user.
type Group struct {
	ID          int64        `json:"id"`
	FullName    string       `json:"full_name"`
	OwnerID     int64        `json:"owner_id"`
	IsOwner     bool         `json:"is_owner"`
	IsCoowner   bool         `json:"is_coowner"`
	IsShared    bool         `json:"is_shared"`
	Accounts    []Account    `json:"accounts"`
	Permissions []Permission `json:"permissions,omitempty"`
	Deleted     bool         `json:"deleted"`
}

// Total sums the balances of the group's live accounts per currency.
func (g Group) Total() money.Totals {
	totals := money.Totals{}
	for _, a := range g.Accounts {
		if a.Deleted || a.Balance == nil {
			continue
		}
		totals.Add(money.New(*a.Balance, a.Currency, a.Scale))
	}
	return totals
}

// Category is one node of a per-type category forest, stored flat in
// depth-first order with Level giving the depth.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Level    int    `json:"level"`
	Type     TxType `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// ConditionType selects how a Rule matches an imported statement line.
type ConditionType int

const (
	PartyEquals ConditionType = iota + 1
	PartyContains
	DetailsEquals
	DetailsContains
	CategoryNameEquals
	CategoryNameContains
)

func (c ConditionType) String() string {
	switch c {
	case PartyEquals:
		return "party equals"
	case PartyContains:
		return "party contains"
	case DetailsEquals:
		return "details equals"
	case DetailsContains:
		return "details contains"
	case CategoryNameEquals:
		return "category name equals"
	case CategoryNameContains:
		return "category name contains"
	default:
		return "unknown"
	}
}

type Rule struct {
	ID         int64         `json:"id"`
	Condition  ConditionType `json:"condition"`
	Value      string        `json:"value"`
	CategoryID int64         `json:"category_id"`
}

// Summary is the per-currency aggregate for the selected accounts and range.
type Summary struct {
	Currency        string          `json:"currency"`
	Scale           int32           `json:"scale"`
	Credit          decimal.Decimal `json:"credit"`
	Debit           decimal.Decimal `json:"debit"`
	TransfersCredit decimal.Decimal `json:"transfers_credit"`
	TransfersDebit  decimal.Decimal `json:"transfers_debit"`
}

func (s Summary) empty() bool {
	return s.Credit.IsZero() && s.Debit.IsZero() && s.TransfersCredit.IsZero() && s.TransfersDebit.IsZero()
}

// CategorySum is the total of one top-level category, one amount per currency.
type CategorySum struct {
	CategoryID int64          `json:"category_id"`
	Name       string         `json:"name"`
	Amounts    []money.Amount `json:"amounts"`
}

// CategorySums splits the category report by type.
type CategorySums struct {
	Expense []CategorySum `json:"expense"`
	Income  []CategorySum `json:"income"`
}
