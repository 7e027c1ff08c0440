package flow

import (
	"errors"
	"sync"

	"github.com/ajeen-pos/customer-display/internal/money"
)

// TipPercentages is the fixed menu presented on the tip step.
var TipPercentages = []int{15, 18, 20, 25}

// ErrInvalidTipAmount rejects negative or non-finite custom tips.
var ErrInvalidTipAmount = errors.New("flow: invalid tip amount")

// TipController handles the tip selection step. A selection stays local until
// Confirm or Skip emits the completion; re-selecting before confirmation just
// overwrites the pending choice.
type TipController struct {
	mu       sync.Mutex
	ctx      Context
	complete CompletionHandler

	amount     float64
	percentage *int
	chosen     bool
	done       bool
}

func newTipController(ctx Context, complete CompletionHandler) *TipController {
	return &TipController{ctx: ctx, complete: complete}
}

func (t *TipController) update(ctx Context) {
	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()
}

func (t *TipController) teardown() {}

// SelectPercentage picks one of the preset percentages. The amount derives
// from the tip base via integer-cent arithmetic.
func (t *TipController) SelectPercentage(pct int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	amount := money.TipForPercentage(t.ctx.BaseForTip, pct)
	p := pct
	t.amount = amount
	t.percentage = &p
	t.chosen = true
	return amount
}

// SetCustomAmount records a hand-entered tip. Negative amounts are rejected
// and leave any prior selection intact.
func (t *TipController) SetCustomAmount(amount float64) error {
	if amount < 0 {
		return ErrInvalidTipAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.amount = money.RoundCurrency(amount)
	t.percentage = nil
	t.chosen = true
	return nil
}

// Amount returns the pending tip amount.
func (t *TipController) Amount() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.amount
}

// Percentage returns the selected preset, nil for custom or no selection.
func (t *TipController) Percentage() *int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentage
}

// Confirm emits the completion for the pending selection. Without a prior
// selection it behaves as Skip.
func (t *TipController) Confirm() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	payload := t.payloadLocked()
	t.mu.Unlock()
	t.complete(StepTip, payload)
}

// Skip completes the step with a zero tip. Emitted as percentage 0, which is
// distinct from a custom amount (nil percentage).
func (t *TipController) Skip() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	zero := 0
	t.amount = 0
	t.percentage = &zero
	payload := t.payloadLocked()
	t.mu.Unlock()
	t.complete(StepTip, payload)
}

func (t *TipController) payloadLocked() map[string]any {
	var pct any
	if t.percentage != nil {
		pct = *t.percentage
	}
	return map[string]any{
		"tipAmount":     t.amount,
		"tipPercentage": pct,
		"orderTotal":    t.ctx.Total,
		"totalWithTip":  money.RoundCurrency(t.ctx.Total + t.amount),
	}
}
