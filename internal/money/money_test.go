package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAmountStringUsesScale(t *testing.T) {
	a := New(decimal.RequireFromString("12.5"), "USD", 2)
	require.Equal(t, "12.50 USD", a.String())

	btc := New(decimal.RequireFromString("0.1"), "BTC", 8)
	require.Equal(t, "0.10000000 BTC", btc.String())

	require.Equal(t, DefaultScale, New(decimal.Zero, "EUR", 0).Scale)
}

func TestTotalsSortedByCurrency(t *testing.T) {
	totals := Totals{}
	totals.Add(New(decimal.RequireFromString("10.10"), "USD", 2))
	totals.Add(New(decimal.RequireFromString("3"), "EUR", 2))
	totals.Add(New(decimal.RequireFromString("0.20"), "USD", 2))

	got := totals.Sorted()
	require.Len(t, got, 2)
	require.Equal(t, "EUR", got[0].Currency)
	require.Equal(t, "USD", got[1].Currency)
	require.True(t, got[1].Value.Equal(decimal.RequireFromString("10.3")))
}

func TestNoFloatDrift(t *testing.T) {
	sum := Zero("USD", 2)
	for i := 0; i < 10; i++ {
		sum = sum.Add(New(decimal.RequireFromString("0.1"), "USD", 2))
	}
	require.True(t, sum.Value.Equal(decimal.NewFromInt(1)))
	require.True(t, sum.Add(sum.Neg()).IsZero())
}
