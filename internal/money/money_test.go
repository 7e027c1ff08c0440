package money_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/money"
)

func TestTotalsBasicCart(t *testing.T) {
	calc := money.Calculator{TaxRateBps: 825}
	lines := []money.CartLine{
		{ID: "1", Name: "Manakish", UnitPrice: 6.50, Quantity: 2},
		{ID: "2", Name: "Lemonade", UnitPrice: 4.00, Quantity: 1},
	}

	totals := calc.Totals(lines, nil)
	require.InDelta(t, 17.00, totals.Subtotal, 0.001)
	require.InDelta(t, 0, totals.DiscountAmount, 0.001)
	require.InDelta(t, 1.40, totals.TaxAmount, 0.001)
	require.InDelta(t, 18.40, totals.Total, 0.001)
}

func TestTotalsLineDiscountClamped(t *testing.T) {
	calc := money.Calculator{TaxRateBps: 1000}
	lines := []money.CartLine{
		{ID: "1", UnitPrice: 10, Quantity: 1, DiscountPercent: 150},
		{ID: "2", UnitPrice: 10, Quantity: 1, DiscountPercent: -5},
	}

	totals := calc.Totals(lines, nil)
	require.InDelta(t, 10.00, totals.Subtotal, 0.001, "over-100 discount zeroes the line, negative is ignored")
}

func TestTotalsOrderDiscountNeverExceedsSubtotal(t *testing.T) {
	calc := money.Calculator{TaxRateBps: 825}
	lines := []money.CartLine{{ID: "1", UnitPrice: 5, Quantity: 1}}

	totals := calc.Totals(lines, &money.OrderDiscount{Type: money.DiscountFixed, Value: 50})
	require.InDelta(t, 5.00, totals.DiscountAmount, 0.001)
	require.InDelta(t, 0, totals.TaxAmount, 0.001)
	require.InDelta(t, 0, totals.Total, 0.001)
	require.GreaterOrEqual(t, totals.Total, 0.0)
}

func TestTotalsPercentageDiscount(t *testing.T) {
	calc := money.Calculator{TaxRateBps: 0}
	lines := []money.CartLine{{ID: "1", UnitPrice: 40, Quantity: 1}}

	totals := calc.Totals(lines, &money.OrderDiscount{Type: money.DiscountPercentage, Value: 25})
	require.InDelta(t, 10.00, totals.DiscountAmount, 0.001)
	require.InDelta(t, 30.00, totals.Total, 0.001)
}

func TestTotalsEmptyCart(t *testing.T) {
	totals := money.Calculator{TaxRateBps: 825}.Totals(nil, nil)
	require.Zero(t, totals.Subtotal)
	require.Zero(t, totals.Total)
}

func TestTotalsIgnoresInvalidLines(t *testing.T) {
	calc := money.Calculator{TaxRateBps: 0}
	lines := []money.CartLine{
		{ID: "1", UnitPrice: 10, Quantity: 0},
		{ID: "2", UnitPrice: -3, Quantity: 2},
		{ID: "3", UnitPrice: 2.50, Quantity: 2},
	}
	totals := calc.Totals(lines, nil)
	require.InDelta(t, 5.00, totals.Subtotal, 0.001)
}

func TestTipForPercentageIntegerCents(t *testing.T) {
	// 19.99 at 18%: 1999 cents * 0.18 = 359.82, rounds to 360 cents.
	require.InDelta(t, 3.60, money.TipForPercentage(19.99, 18), 0.0001)
	require.InDelta(t, 3.00, money.TipForPercentage(20.00, 15), 0.0001)
	require.Zero(t, money.TipForPercentage(0, 20))
	require.Zero(t, money.TipForPercentage(10, 0))
	require.Zero(t, money.TipForPercentage(-5, 18))
}

func TestRoundCurrency(t *testing.T) {
	require.InDelta(t, 1.40, money.RoundCurrency(1.4025), 0.0001)
	require.InDelta(t, 3.60, money.RoundCurrency(3.5982), 0.0001)
	require.InDelta(t, -2.21, money.RoundCurrency(-2.206), 0.0001)
	require.InDelta(t, 0.13, money.RoundCurrency(0.125000001), 0.0001)
}

func TestEqualAmounts(t *testing.T) {
	require.True(t, money.EqualAmounts(10.004, 10.0))
	require.False(t, money.EqualAmounts(10.02, 10.0))
}
