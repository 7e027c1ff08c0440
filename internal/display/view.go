package display

import (
	"encoding/json"

	"github.com/ajeen-pos/customer-display/internal/flow"
	"github.com/ajeen-pos/customer-display/internal/money"
)

// CartViewModel is the processed cart the cart and flow views render.
// Totals are recomputed on every build, never cached.
type CartViewModel struct {
	Items          []money.CartLine     `json:"items"`
	Subtotal       float64              `json:"subtotal"`
	DiscountAmount float64              `json:"discountAmount"`
	TaxAmount      float64              `json:"taxAmount"`
	Total          float64              `json:"total"`
	OrderDiscount  *money.OrderDiscount `json:"orderDiscount,omitempty"`
	OrderID        string               `json:"orderId,omitempty"`
}

// BuildCartView assembles the cart view from the mirrored cart state,
// falling back to cart fields carried in the display document. Empty carts
// yield zeroed totals, not an error.
func BuildCartView(calc money.Calculator, mirrorCart, data Data, orderID string) CartViewModel {
	var lines []money.CartLine
	if !decodeField(mirrorCart, "cart", &lines) {
		decodeField(data, "cart", &lines)
	}
	var discount *money.OrderDiscount
	if !decodeField(mirrorCart, "orderDiscount", &discount) {
		decodeField(data, "orderDiscount", &discount)
	}

	totals := calc.Totals(lines, discount)
	if lines == nil {
		lines = []money.CartLine{}
	}
	return CartViewModel{
		Items:          lines,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		OrderDiscount:  discount,
		OrderID:        orderID,
	}
}

// BuildFlowContext shapes the display document into the snapshot the flow
// engine renders from. Total is the amount due for this tender
// (currentPaymentAmount); OriginalTotal is the full cart total, which split
// payments reconcile against.
func BuildFlowContext(data Data, cart CartViewModel, orderID string) flow.Context {
	cartData := data.Child("cartData")
	cashData := data.Child("cashData")
	tip := data.Child("tip")

	baseForTip := data.Float("baseForTipCalculation")
	if baseForTip == 0 {
		baseForTip = data.Float("currentPaymentAmount")
	}
	subtotal := cartData.Float("subtotal")
	if subtotal == 0 {
		subtotal = cart.Subtotal
	}
	tax := cartData.Float("taxAmount")
	if tax == 0 {
		tax = cart.TaxAmount
	}
	discountAmount := cartData.Float("discountAmount")
	if discountAmount == 0 {
		discountAmount = cart.DiscountAmount
	}
	originalTotal := data.Float("originalTotal")
	if originalTotal == 0 {
		originalTotal = cartData.Float("total")
	}
	if originalTotal == 0 {
		originalTotal = cart.Total
	}
	amountPaid := cashData.Float("amountPaid")
	if amountPaid == 0 {
		amountPaid = data.Float("amountPaid")
	}

	return flow.Context{
		CurrentStep:         data.String("currentStep"),
		OrderID:             orderID,
		PaymentMethod:       data.String("paymentMethod"),
		IsSplitPayment:      data.Bool("isSplitPayment"),
		CashPaymentComplete: data.Bool("cashPaymentComplete"),
		Items:               cart.Items,
		Subtotal:            subtotal,
		Tax:                 tax,
		DiscountAmount:      discountAmount,
		Total:               data.Float("currentPaymentAmount"),
		BaseForTip:          baseForTip,
		TipAmount:           tip.Float("tipAmount"),
		OriginalTotal:       originalTotal,
		CashTendered:        cashData.Float("cashTendered"),
		Change:              cashData.Float("change"),
		AmountPaid:          amountPaid,
		SplitDetails:        data.Child("splitDetails"),
		Payment:             data.Child("payment"),
	}
}

// decodeField re-marshals a loosely typed document field into target.
// Returns false when the field is absent or does not fit.
func decodeField(d Data, key string, target any) bool {
	if d == nil {
		return false
	}
	v, ok := d[key]
	if !ok || v == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}
