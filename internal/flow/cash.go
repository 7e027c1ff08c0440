package flow

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/clock"
	"github.com/ajeen-pos/customer-display/internal/money"
)

// Cash payment display stages.
const (
	CashStageProcessing = "processing"
	CashStageComplete   = "complete"
)

// Reconciliation is the derived cash position the payment view renders.
type Reconciliation struct {
	EffectiveTotal  float64
	AmountPaid      float64
	RemainingAmount float64
	Change          float64
	IsFullyPaid     bool
}

// Reconcile derives the cash position from a context snapshot. The remaining
// amount nets tendered change back out of the paid total so a split
// continuation sees only what is genuinely outstanding.
func Reconcile(ctx Context) Reconciliation {
	effective := ctx.Total
	if ctx.IsSplitPayment && ctx.OriginalTotal > 0 {
		effective = ctx.OriginalTotal
	}
	remaining := effective - ctx.AmountPaid - ctx.Total + ctx.Change
	remaining = math.Max(0, money.RoundCurrency(remaining))
	return Reconciliation{
		EffectiveTotal:  effective,
		AmountPaid:      ctx.AmountPaid,
		RemainingAmount: remaining,
		Change:          ctx.Change,
		IsFullyPaid:     remaining < money.Epsilon,
	}
}

// CashController renders the cash payment step. The opener owns the
// authoritative completion boolean; this controller follows it in both
// directions and emits the settle signal exactly once per completion.
type CashController struct {
	mu       sync.Mutex
	ctx      Context
	clk      clock.Clock
	timing   Timing
	logger   zerolog.Logger
	complete CompletionHandler

	stage   string
	settle  clock.Timer
	emitted bool
}

func newCashController(ctx Context, clk clock.Clock, timing Timing, logger zerolog.Logger, complete CompletionHandler) *CashController {
	c := &CashController{
		clk:      clk,
		timing:   timing,
		logger:   logger.With().Str("step", "cash").Logger(),
		complete: complete,
		stage:    CashStageProcessing,
	}
	c.update(ctx)
	return c
}

// Stage returns the current display stage.
func (c *CashController) Stage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Reconciliation returns the current derived cash position.
func (c *CashController) Reconciliation() Reconciliation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Reconcile(c.ctx)
}

func (c *CashController) update(ctx Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
	if ctx.CashPaymentComplete && c.stage != CashStageComplete {
		c.stage = CashStageComplete
		c.armSettleLocked()
	} else if !ctx.CashPaymentComplete && c.stage == CashStageComplete {
		// The opener reopened the payment. Drop the pending signal and
		// rearm on the next completion.
		c.stage = CashStageProcessing
		if c.settle != nil {
			c.settle.Stop()
			c.settle = nil
		}
		c.emitted = false
	}
}

func (c *CashController) armSettleLocked() {
	if c.emitted || c.settle != nil {
		return
	}
	c.settle = c.clk.AfterFunc(c.timing.Settle, func() {
		c.mu.Lock()
		if c.emitted || c.stage != CashStageComplete {
			c.mu.Unlock()
			return
		}
		c.emitted = true
		c.settle = nil
		ctx := c.ctx
		c.mu.Unlock()
		c.complete(StepPayment, map[string]any{
			"status":       "success",
			"method":       MethodCash,
			"timestamp":    c.clk.Now().UTC().Format(time.RFC3339),
			"cashTendered": ctx.CashTendered,
			"changeGiven":  ctx.Change,
			"amountPaid":   ctx.Total,
		})
	})
}

func (c *CashController) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
}
