package flow

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/clock"
	"github.com/ajeen-pos/customer-display/internal/terminal"
)

// ErrRetryUnavailable is returned when a retry is requested while the
// terminal is not in the error state.
var ErrRetryUnavailable = errors.New("flow: terminal not in a retryable state")

// CardController renders the card payment step. The simulated terminal runs
// its own staged progression; this controller arms it after a handshake pause
// and relays the final outcome upward after the settle delay.
type CardController struct {
	mu       sync.Mutex
	ctx      Context
	clk      clock.Clock
	timing   Timing
	logger   zerolog.Logger
	complete CompletionHandler

	sim       *terminal.Simulator
	handshake clock.Timer
	settle    clock.Timer
	started   bool
	emitted   bool
	observe   func(outcome string)
}

func newCardController(ctx Context, clk clock.Clock, timing Timing, termCfg terminal.Config, logger zerolog.Logger, complete CompletionHandler, observe func(outcome string)) *CardController {
	if observe == nil {
		observe = func(string) {}
	}
	c := &CardController{
		ctx:      ctx,
		clk:      clk,
		timing:   timing,
		logger:   logger.With().Str("step", "card").Logger(),
		complete: complete,
		observe:  observe,
	}
	c.sim = terminal.NewSimulator(termCfg, clk, logger)
	c.sim.OnState(c.onTerminalState)
	c.mu.Lock()
	c.armLocked()
	c.mu.Unlock()
	return c
}

// Status reports the terminal's current status.
func (c *CardController) Status() terminal.Status {
	return c.sim.Status()
}

// Result returns the terminal outcome, nil before success.
func (c *CardController) Result() *terminal.Result {
	return c.sim.Result()
}

// Err returns the terminal's failure message, empty unless errored.
func (c *CardController) Err() string {
	return c.sim.Err()
}

// Retry restarts the payment attempt. Only valid from the error state; there
// is no cap on manual retries. The handshake pause runs again before the
// terminal is re-engaged, exactly as it does on first mount.
func (c *CardController) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim.Status() != terminal.StatusError {
		return ErrRetryUnavailable
	}
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.logger.Info().Msg("retrying card payment")
	c.started = false
	c.armLocked()
	return nil
}

func (c *CardController) update(ctx Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
}

// armLocked schedules the handshake pause before the next attempt. Retry
// clears started so an errored attempt re-arms; remounting the step creates
// a fresh controller, which arms from scratch.
func (c *CardController) armLocked() {
	if c.started {
		return
	}
	c.started = true
	c.handshake = c.clk.AfterFunc(c.timing.Handshake, func() {
		c.mu.Lock()
		c.handshake = nil
		req := c.requestLocked()
		c.mu.Unlock()
		c.sim.Process(req)
	})
}

func (c *CardController) requestLocked() terminal.PaymentRequest {
	return terminal.PaymentRequest{
		OrderID:   c.ctx.OrderID,
		Total:     c.ctx.Total,
		TipAmount: c.ctx.TipAmount,
	}
}

func (c *CardController) onTerminalState(status terminal.Status, result *terminal.Result, _ string) {
	switch status {
	case terminal.StatusError:
		// Errors wait for a manual retry; nothing is emitted.
		c.observe("error")
		return
	case terminal.StatusSuccess:
		c.observe("success")
	default:
		return
	}
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armCompletionLocked(*result)
}

// armCompletionLocked schedules the single settle emission for a successful
// payment. A second success from a stray callback cannot emit again.
func (c *CardController) armCompletionLocked(result terminal.Result) {
	if c.emitted || c.settle != nil {
		return
	}
	c.settle = c.clk.AfterFunc(c.timing.Settle, func() {
		c.mu.Lock()
		if c.emitted {
			c.mu.Unlock()
			return
		}
		c.emitted = true
		c.settle = nil
		ctx := c.ctx
		c.mu.Unlock()
		c.complete(StepPayment, map[string]any{
			"status":        "success",
			"method":        result.Method,
			"transactionId": result.TransactionID,
			"cardInfo": map[string]any{
				"brand": result.CardInfo.Brand,
				"last4": result.CardInfo.Last4,
			},
			"amount":    result.Amount,
			"timestamp": c.clk.Now().UTC().Format(time.RFC3339),
			"orderId":   ctx.OrderID,
		})
	})
}

func (c *CardController) teardown() {
	c.mu.Lock()
	if c.handshake != nil {
		c.handshake.Stop()
		c.handshake = nil
	}
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.mu.Unlock()
	c.sim.Teardown()
}
