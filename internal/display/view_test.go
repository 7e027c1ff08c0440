package display_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/display"
	"github.com/ajeen-pos/customer-display/internal/money"
)

func TestBuildCartViewComputesTotals(t *testing.T) {
	calc := money.Calculator{TaxRateBps: 825}
	mirror := display.Data{
		"cart": []any{
			map[string]any{"id": "1", "name": "Manakish", "price": 6.5, "quantity": 2.0},
			map[string]any{"id": "2", "name": "Lemonade", "price": 4.0, "quantity": 1.0},
		},
	}

	view := display.BuildCartView(calc, mirror, nil, "ord_1")
	require.Len(t, view.Items, 2)
	require.InDelta(t, 17.00, view.Subtotal, 0.001)
	require.InDelta(t, 18.40, view.Total, 0.001)
	require.Equal(t, "ord_1", view.OrderID)
}

func TestBuildCartViewEmpty(t *testing.T) {
	view := display.BuildCartView(money.Calculator{TaxRateBps: 825}, nil, nil, "")
	require.NotNil(t, view.Items)
	require.Empty(t, view.Items)
	require.Zero(t, view.Total)
}

func TestBuildCartViewFallsBackToDisplayData(t *testing.T) {
	data := display.Data{
		"cart": []any{map[string]any{"id": "1", "price": 5.0, "quantity": 1.0}},
	}
	view := display.BuildCartView(money.Calculator{}, nil, data, "")
	require.Len(t, view.Items, 1)
	require.InDelta(t, 5.00, view.Subtotal, 0.001)
}

func TestBuildFlowContextMapsFields(t *testing.T) {
	data := display.Data{
		"currentStep":           "payment",
		"paymentMethod":         "cash",
		"currentPaymentAmount":  20.0,
		"baseForTipCalculation": 18.4,
		"isSplitPayment":        true,
		"cashPaymentComplete":   true,
		"cartData":              map[string]any{"subtotal": 17.0, "taxAmount": 1.4, "total": 40.0},
		"cashData":              map[string]any{"cashTendered": 20.0, "change": 0.0, "amountPaid": 20.0},
		"tip":                   map[string]any{"tipAmount": 2.0},
	}

	ctx := display.BuildFlowContext(data, display.CartViewModel{}, "ord_1")
	require.Equal(t, "payment", ctx.CurrentStep)
	require.Equal(t, "ord_1", ctx.OrderID)
	require.Equal(t, "cash", ctx.PaymentMethod)
	require.True(t, ctx.IsSplitPayment)
	require.True(t, ctx.CashPaymentComplete)
	require.InDelta(t, 20.0, ctx.Total, 0.001, "Total is the current tender amount")
	require.InDelta(t, 18.4, ctx.BaseForTip, 0.001)
	require.InDelta(t, 40.0, ctx.OriginalTotal, 0.001, "OriginalTotal is the full cart total")
	require.InDelta(t, 2.0, ctx.TipAmount, 0.001)
	require.InDelta(t, 20.0, ctx.CashTendered, 0.001)
}

func TestBuildFlowContextTipBaseFallsBackToPaymentAmount(t *testing.T) {
	data := display.Data{"currentPaymentAmount": 12.5}
	ctx := display.BuildFlowContext(data, display.CartViewModel{}, "")
	require.InDelta(t, 12.5, ctx.BaseForTip, 0.001)
}

func TestBuildFlowContextCartFallbacks(t *testing.T) {
	cart := display.CartViewModel{Subtotal: 10, TaxAmount: 0.83, Total: 10.83}
	ctx := display.BuildFlowContext(display.Data{}, cart, "")
	require.InDelta(t, 10, ctx.Subtotal, 0.001)
	require.InDelta(t, 0.83, ctx.Tax, 0.001)
	require.InDelta(t, 10.83, ctx.OriginalTotal, 0.001)
}
