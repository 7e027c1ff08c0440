package money

import "math"

// Discount kinds supported by order-level discounts.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// CartLine is an immutable snapshot of one cart row as sent to the display.
type CartLine struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	UnitPrice       float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discount"`
}

// OrderDiscount applies to the whole order, never per line.
type OrderDiscount struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"discount_type"`
	Value float64 `json:"value"`
}

// CartTotals holds derived amounts. Recomputed on every render, never cached
// across cart mutations.
type CartTotals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	Total          float64 `json:"total"`
}

// Calculator computes cart totals. The tax rate is supplied externally in
// basis points (825 = 8.25%).
type Calculator struct {
	TaxRateBps int
}

// Totals computes subtotal, discount, tax and total for the given lines.
// Rounding to currency precision happens once per output figure, round half
// up, so per-line error does not compound. Outputs are clamped to zero on
// pathological discount configurations rather than returning an error.
func (c Calculator) Totals(lines []CartLine, discount *OrderDiscount) CartTotals {
	if len(lines) == 0 {
		return CartTotals{}
	}

	var subtotal float64
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitPrice <= 0 {
			continue
		}
		pct := line.DiscountPercent
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		subtotal += line.UnitPrice * float64(line.Quantity) * (1 - pct/100)
	}

	discountAmount := discountAmountFor(subtotal, discount)
	taxable := subtotal - discountAmount
	if taxable < 0 {
		taxable = 0
	}
	taxAmount := taxable * float64(c.TaxRateBps) / 10000

	subtotal = RoundCurrency(subtotal)
	discountAmount = RoundCurrency(discountAmount)
	taxAmount = RoundCurrency(taxAmount)
	total := RoundCurrency(subtotal - discountAmount + taxAmount)
	if total < 0 {
		total = 0
	}
	return CartTotals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		Total:          total,
	}
}

// discountAmountFor resolves the order-level discount against the already
// line-discounted subtotal. The amount never exceeds the subtotal.
func discountAmountFor(subtotal float64, discount *OrderDiscount) float64 {
	if discount == nil || subtotal <= 0 {
		return 0
	}
	var amount float64
	switch discount.Type {
	case DiscountPercentage:
		pct := discount.Value
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		amount = subtotal * pct / 100
	case DiscountFixed:
		amount = discount.Value
	default:
		return 0
	}
	if amount < 0 {
		amount = 0
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// TipForPercentage computes a tip using integer-cent arithmetic so repeated
// float multiplication cannot drift: round(cents * pct / 100) back to
// dollars.
func TipForPercentage(orderTotal float64, pct int) float64 {
	if orderTotal <= 0 || pct <= 0 {
		return 0
	}
	orderCents := math.Round(orderTotal * 100)
	tipCents := math.Round(orderCents * float64(pct) / 100)
	return tipCents / 100
}

// RoundCurrency rounds to two decimals, half away from zero.
func RoundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}

// Epsilon is the tolerance used when comparing currency amounts. Never
// compare float totals for exact equality.
const Epsilon = 0.01

// EqualAmounts reports whether two currency amounts agree within Epsilon.
func EqualAmounts(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}
