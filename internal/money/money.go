package money

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultScale is used when an account does not declare one.
const DefaultScale int32 = 2

// Amount is a value in one currency. Scale is the number of decimal places
// the currency is displayed with.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
	Scale    int32           `json:"scale"`
}

func New(value decimal.Decimal, currency string, scale int32) Amount {
	if scale <= 0 {
		scale = DefaultScale
	}
	return Amount{Value: value, Currency: currency, Scale: scale}
}

func Zero(currency string, scale int32) Amount {
	return New(decimal.Zero, currency, scale)
}

// Add sums two amounts of the same currency. The receiver's currency and scale win.
func (a Amount) Add(other Amount) Amount {
	return Amount{Value: a.Value.Add(other.Value), Currency: a.Currency, Scale: a.Scale}
}

func (a Amount) Neg() Amount {
	return Amount{Value: a.Value.Neg(), Currency: a.Currency, Scale: a.Scale}
}

func (a Amount) IsZero() bool { return a.Value.IsZero() }

// Round rounds the value to the amount's scale.
func (a Amount) Round() Amount {
	return Amount{Value: a.Value.Round(a.Scale), Currency: a.Currency, Scale: a.Scale}
}

// String renders the value with exactly Scale decimals followed by the currency.
func (a Amount) String() string {
	s := a.Value.StringFixed(a.Scale)
	if a.Currency == "" {
		return s
	}
	return s + " " + a.Currency
}

// Totals accumulates amounts per currency.
type Totals map[string]Amount

// Add folds an amount into the totals. The first scale seen for a currency is kept.
func (t Totals) Add(a Amount) {
	if cur, ok := t[a.Currency]; ok {
		t[a.Currency] = cur.Add(a)
		return
	}
	t[a.Currency] = New(a.Value, a.Currency, a.Scale)
}

// Sorted returns the totals ordered by currency code.
func (t Totals) Sorted() []Amount {
	out := make([]Amount, 0, len(t))
	for _, a := range t {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
