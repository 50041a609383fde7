package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBalanceDelta(t *testing.T) {
	amount := decimal.RequireFromString("10.00")

	cases := []struct {
		name      string
		class     AccountClass
		direction LineDirection
		want      string
	}{
		{"debit increases asset", AccountClassAsset, LineDebit, "10.00"},
		{"credit decreases asset", AccountClassAsset, LineCredit, "-10.00"},
		{"debit increases expense", AccountClassExpense, LineDebit, "10.00"},
		{"debit decreases liability", AccountClassLiability, LineDebit, "-10.00"},
		{"credit increases liability", AccountClassLiability, LineCredit, "10.00"},
		{"credit increases income", AccountClassIncome, LineCredit, "10.00"},
		{"credit increases equity", AccountClassEquity, LineCredit, "10.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BalanceDelta(tc.class, tc.direction, amount)
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestLineTotals(t *testing.T) {
	lines := []JournalLine{
		{Direction: LineDebit, Amount: decimal.RequireFromString("25.00")},
		{Direction: LineCredit, Amount: decimal.RequireFromString("20.00")},
		{Direction: LineCredit, Amount: decimal.RequireFromString("5.00")},
	}

	debits, credits := LineTotals(lines)
	require.True(t, debits.Equal(decimal.RequireFromString("25.00")))
	require.True(t, credits.Equal(decimal.RequireFromString("25.00")))
}

func TestAuthorizationStatusTerminal(t *testing.T) {
	require.False(t, AuthorizationStatusAuthorized.Terminal())
	require.True(t, AuthorizationStatusFulfilled.Terminal())
	require.True(t, AuthorizationStatusExpired.Terminal())
	require.True(t, AuthorizationStatusFailed.Terminal())
}

func TestObligationConsistent(t *testing.T) {
	obligation := AnchorObligation{
		TotalAuthorized: decimal.RequireFromString("100"),
		TotalFulfilled:  decimal.RequireFromString("60"),
		TotalExpired:    decimal.RequireFromString("40"),
	}
	require.True(t, obligation.Consistent())

	obligation.TotalExpired = decimal.RequireFromString("41")
	require.False(t, obligation.Consistent())
}
