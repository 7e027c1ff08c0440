// Package flow drives the sequential customer-facing checkout experience:
// cart review, optional rewards signup, tip selection, payment and receipt.
// The engine is a pure follower: it renders whatever step it is told and
// reports completions upward, it never advances the sequence itself. Step
// sequencing stays with the opener so the cashier's authoritative state and
// the customer's view cannot diverge.
package flow

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/clock"
	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/terminal"
)

// Step identifiers in display order.
const (
	StepCart    = "cart"
	StepRewards = "rewards"
	StepTip     = "tip"
	StepPayment = "payment"
	StepReceipt = "receipt"
)

// Payment methods carried in the flow state.
const (
	MethodCash   = "cash"
	MethodCredit = "credit"
	MethodSplit  = "split"
)

// Steps is the fixed linear order used for progress display only.
var Steps = []string{StepCart, StepRewards, StepTip, StepPayment, StepReceipt}

// Progress returns the progress-bar percentage for a step. Unknown steps
// yield 0 rather than an error.
func Progress(step string) float64 {
	for i, s := range Steps {
		if s == step {
			return float64(i+1) / float64(len(Steps)) * 100
		}
	}
	return 0
}

// Context is the snapshot of flow state a render cycle works from. It is
// assembled from the display document by the session; controllers never
// reach back into shared state.
type Context struct {
	CurrentStep         string
	OrderID             string
	PaymentMethod       string
	IsSplitPayment      bool
	CashPaymentComplete bool

	Items          []money.CartLine
	Subtotal       float64
	Tax            float64
	DiscountAmount float64
	// Total is the amount due for this tender, not the order total.
	Total      float64
	BaseForTip float64
	TipAmount  float64
	// OriginalTotal is the full order total, relevant for split payments.
	OriginalTotal float64

	CashTendered float64
	Change       float64
	AmountPaid   float64

	SplitDetails map[string]any
	Payment      map[string]any
}

// CompletionHandler receives step results to be relayed to the opener.
type CompletionHandler func(step string, data map[string]any)

// Timing groups the fixed delays that pace the flow.
type Timing struct {
	// Handshake precedes the first terminal stage after the card step
	// mounts, modeling hardware connection latency.
	Handshake time.Duration
	// Settle is the pause between a payment reaching its final state and
	// the completion signal, so the customer sees the confirmation.
	Settle time.Duration
	// ReceiptComplete fires the receipt step's automatic completion.
	ReceiptComplete time.Duration
	// ReceiptDetails reveals transaction detail in the receipt view. It is
	// deliberately independent of ReceiptComplete.
	ReceiptDetails time.Duration
}

// DefaultTiming mirrors the pacing of the original display.
func DefaultTiming() Timing {
	return Timing{
		Handshake:       1500 * time.Millisecond,
		Settle:          2 * time.Second,
		ReceiptComplete: 150 * time.Millisecond,
		ReceiptDetails:  1800 * time.Millisecond,
	}
}

func (t Timing) withDefaults() Timing {
	def := DefaultTiming()
	if t.Handshake <= 0 {
		t.Handshake = def.Handshake
	}
	if t.Settle <= 0 {
		t.Settle = def.Settle
	}
	if t.ReceiptComplete <= 0 {
		t.ReceiptComplete = def.ReceiptComplete
	}
	if t.ReceiptDetails <= 0 {
		t.ReceiptDetails = def.ReceiptDetails
	}
	return t
}

// stepController is the capability set shared by step views: react to fresh
// context, and release timers on teardown.
type stepController interface {
	update(ctx Context)
	teardown()
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Clock    clock.Clock
	Timing   Timing
	Terminal terminal.Config
	Logger   zerolog.Logger
	OnStep   CompletionHandler
	// OnTerminal observes every card attempt outcome, "success" or "error",
	// including attempts that never complete the step.
	OnTerminal func(outcome string)
}

// Engine owns the controller for the step currently on screen and swaps it
// when the opener pushes a different currentStep. It is safe for concurrent
// use: the message stream, the HTTP surface and timer callbacks all reach it.
type Engine struct {
	clk        clock.Clock
	timing     Timing
	term       terminal.Config
	logger     zerolog.Logger
	onStep     CompletionHandler
	onTerminal func(outcome string)

	mu         sync.Mutex
	step       string
	method     string
	ctx        Context
	controller stepController

	tip     *TipController
	rewards *RewardsController
	card    *CardController
	cash    *CashController
	receipt *receiptController

	// ordMu guards orderID separately so complete, which runs under a
	// controller's lock, never contends with mu.
	ordMu   sync.Mutex
	orderID string
}

// NewEngine returns an engine with no mounted step.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	onStep := cfg.OnStep
	if onStep == nil {
		onStep = func(string, map[string]any) {}
	}
	return &Engine{
		clk:        cfg.Clock,
		timing:     cfg.Timing.withDefaults(),
		term:       cfg.Terminal,
		logger:     cfg.Logger.With().Str("component", "flow").Logger(),
		onStep:     onStep,
		onTerminal: cfg.OnTerminal,
	}
}

// Sync reconciles the engine against a fresh context. A changed step (or a
// changed payment method within the payment step) remounts the controller;
// otherwise the current controller is updated in place.
func (e *Engine) Sync(ctx Context) {
	e.ordMu.Lock()
	e.orderID = ctx.OrderID
	e.ordMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	remount := ctx.CurrentStep != e.step || (ctx.CurrentStep == StepPayment && ctx.PaymentMethod != e.method)
	e.ctx = ctx
	if remount {
		e.unmountLocked()
		e.step = ctx.CurrentStep
		e.method = ctx.PaymentMethod
		e.mountLocked(ctx)
		return
	}
	if e.controller != nil {
		e.controller.update(ctx)
	}
}

// Step returns the currently mounted step id.
func (e *Engine) Step() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Context returns the last synced context.
func (e *Engine) Context() Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// Tip returns the tip controller, nil unless the tip step is mounted.
func (e *Engine) Tip() *TipController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tip
}

// Rewards returns the rewards controller, nil unless mounted.
func (e *Engine) Rewards() *RewardsController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewards
}

// Card returns the card payment controller, nil unless mounted.
func (e *Engine) Card() *CardController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.card
}

// Cash returns the cash payment controller, nil unless mounted.
func (e *Engine) Cash() *CashController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash
}

// ReceiptDetailsVisible reports whether the receipt detail reveal timer has
// fired. False whenever the receipt step is not mounted.
func (e *Engine) ReceiptDetailsVisible() bool {
	e.mu.Lock()
	receipt := e.receipt
	e.mu.Unlock()
	if receipt == nil {
		return false
	}
	return receipt.detailsVisible()
}

// Teardown unmounts the current step and cancels its timers. Idempotent.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unmountLocked()
	e.step = ""
	e.method = ""
}

func (e *Engine) mountLocked(ctx Context) {
	switch ctx.CurrentStep {
	case StepTip:
		e.tip = newTipController(ctx, e.complete)
		e.controller = e.tip
	case StepRewards:
		e.rewards = newRewardsController(e.complete)
		e.controller = e.rewards
	case StepPayment:
		if ctx.PaymentMethod == MethodCash {
			e.cash = newCashController(ctx, e.clk, e.timing, e.logger, e.complete)
			e.controller = e.cash
		} else {
			e.card = newCardController(ctx, e.clk, e.timing, e.term, e.logger, e.complete, e.onTerminal)
			e.controller = e.card
		}
	case StepReceipt:
		e.receipt = newReceiptController(e.clk, e.timing, e.complete)
		e.controller = e.receipt
	case StepCart, "":
		// Cart review is passive; the opener advances it.
		e.controller = nil
	default:
		// Unknown steps render a neutral fallback and nothing else.
		e.logger.Warn().Str("step", ctx.CurrentStep).Msg("unknown flow step")
		e.controller = nil
	}
}

func (e *Engine) unmountLocked() {
	if e.controller != nil {
		e.controller.teardown()
	}
	e.controller = nil
	e.tip = nil
	e.rewards = nil
	e.card = nil
	e.cash = nil
	e.receipt = nil
}

func (e *Engine) complete(step string, data map[string]any) {
	e.ordMu.Lock()
	orderID := e.orderID
	e.ordMu.Unlock()
	if orderID != "" {
		if _, ok := data["orderId"]; !ok {
			data["orderId"] = orderID
		}
	}
	e.logger.Info().Str("step", step).Msg("step completed")
	e.onStep(step, data)
}
