// Package opener is the cashier-facing half of the station: it owns the
// authoritative checkout state, decides which step the display shows next
// and reacts to the completion signals the display sends back. The display
// never advances itself.
package opener

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/channel"
	"github.com/ajeen-pos/customer-display/internal/display"
	"github.com/ajeen-pos/customer-display/internal/flow"
	"github.com/ajeen-pos/customer-display/internal/money"
)

// StepHandler observes completions relayed from the display.
type StepHandler func(step string, data display.Data)

// Checkout describes one order about to enter the flow.
type Checkout struct {
	OrderID        string
	PaymentMethod  string
	Items          []money.CartLine
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
	// SplitAmount, when positive, is the first tender of a split payment.
	SplitAmount float64
	// SkipRewards drops the rewards step for this checkout.
	SkipRewards bool
}

// Config wires a Controller.
type Config struct {
	// Sender identifies this opener on the wire; the display only trusts
	// messages carrying it.
	Sender    string
	Out       channel.Channel
	Replies   channel.Channel
	Mirror    channel.Mirror
	MirrorKey string
	Logger    zerolog.Logger
	// OnStep observes every completion after the controller has applied it.
	OnStep StepHandler
}

// Controller runs checkouts against a display session.
type Controller struct {
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	active     bool
	checkout   Checkout
	step       string
	amountDue  float64
	paid       float64
	tipTotal   float64
	splitIndex int
	unsub      func()
}

// NewController constructs an idle controller.
func NewController(cfg Config) *Controller {
	if cfg.OnStep == nil {
		cfg.OnStep = func(string, display.Data) {}
	}
	return &Controller{cfg: cfg, logger: cfg.Logger.With().Str("component", "opener").Logger()}
}

// Start subscribes to the display's reply stream.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsub != nil {
		return
	}
	c.unsub = c.cfg.Replies.OnMessage(c.handleReply)
}

// Close unsubscribes. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Step returns the step the controller last instructed the display to show.
func (c *Controller) Step() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Begin snapshots the cart into the mirror and starts the customer flow.
// Card payments collect a tip first; cash goes straight to payment.
func (c *Controller) Begin(ctx context.Context, co Checkout) error {
	amount := co.Total
	if co.SplitAmount > 0 && co.SplitAmount < co.Total {
		amount = co.SplitAmount
	}

	c.mu.Lock()
	c.active = true
	c.checkout = co
	c.amountDue = amount
	c.paid = 0
	c.tipTotal = 0
	c.splitIndex = 0
	c.step = c.firstStepLocked()
	step := c.step
	c.mu.Unlock()

	if err := c.writeMirror(ctx, co); err != nil {
		return err
	}

	content := display.Data{
		"currentStep":          step,
		"orderId":              co.OrderID,
		"paymentMethod":        co.PaymentMethod,
		"currentPaymentAmount": amount,
		"isSplitPayment":       co.SplitAmount > 0 && co.SplitAmount < co.Total,
		"cartData": map[string]any{
			"subtotal":       co.Subtotal,
			"discountAmount": co.DiscountAmount,
			"taxAmount":      co.TaxAmount,
			"total":          co.Total,
		},
	}
	return c.send(ctx, display.TypeStartFlow, content)
}

// RecordCashPayment pushes a cash drawer event to the display. The display's
// payment view mirrors the completion boolean in both directions, so sending
// complete=false reopens a payment.
func (c *Controller) RecordCashPayment(ctx context.Context, tendered, change float64, complete bool) error {
	c.mu.Lock()
	paid := money.RoundCurrency(c.paid + c.amountDue)
	c.mu.Unlock()

	return c.send(ctx, display.TypeDirectCashUpdate, display.Data{
		"cashPaymentComplete": complete,
		"cashData": map[string]any{
			"cashTendered": tendered,
			"change":       change,
			"amountPaid":   paid,
		},
	})
}

// ShowCart switches the display to the live cart view.
func (c *Controller) ShowCart(ctx context.Context) error {
	return c.send(ctx, display.TypeShowCart, nil)
}

// ShowWelcome resets the display to the idle view.
func (c *Controller) ShowWelcome(ctx context.Context) error {
	c.mu.Lock()
	c.active = false
	c.step = ""
	c.mu.Unlock()
	return c.send(ctx, display.TypeShowWelcome, nil)
}

func (c *Controller) firstStepLocked() string {
	if !c.checkout.SkipRewards {
		return flow.StepRewards
	}
	if c.checkout.PaymentMethod == flow.MethodCash {
		return flow.StepPayment
	}
	return flow.StepTip
}

func (c *Controller) handleReply(payload []byte) {
	env, err := display.DecodeEnvelope(payload, display.SenderDisplay)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reply dropped")
		return
	}
	switch env.Type {
	case display.TypeDisplayReady:
		c.logger.Info().Msg("display reported ready")
	case display.TypeStepComplete:
		var completion display.StepCompletion
		if err := json.Unmarshal(env.Content, &completion); err != nil {
			c.logger.Warn().Err(err).Msg("malformed completion dropped")
			return
		}
		c.advance(completion)
	}
}

// advance applies one completion and pushes the next step. Payment
// completions check the split position: if rounded-off cents still leave a
// balance beyond the comparison tolerance, a second tender begins instead of
// the receipt.
func (c *Controller) advance(completion display.StepCompletion) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}

	var next string
	patch := display.Data{}
	switch completion.Step {
	case flow.StepRewards:
		if c.checkout.PaymentMethod == flow.MethodCash {
			next = flow.StepPayment
		} else {
			next = flow.StepTip
		}
	case flow.StepTip:
		c.tipTotal = money.RoundCurrency(c.tipTotal + completion.Data.Float("tipAmount"))
		patch["tip"] = map[string]any{"tipAmount": completion.Data.Float("tipAmount")}
		next = flow.StepPayment
	case flow.StepPayment:
		c.paid = money.RoundCurrency(c.paid + c.amountDue)
		c.splitIndex++
		remaining := money.RoundCurrency(c.checkout.Total - c.paid)
		if remaining >= money.Epsilon {
			// Split continuation: the next tender covers the balance.
			c.amountDue = remaining
			patch["currentPaymentAmount"] = remaining
			patch["isSplitPayment"] = true
			patch["cashPaymentComplete"] = false
			patch["amountPaid"] = c.paid
			patch["originalTotal"] = c.checkout.Total
			patch["splitDetails"] = map[string]any{
				"currentSplitIndex": c.splitIndex,
				"amountPaid":        c.paid,
				"remainingAmount":   remaining,
			}
			if c.checkout.PaymentMethod == flow.MethodCash {
				next = flow.StepPayment
			} else {
				next = flow.StepTip
			}
		} else {
			next = flow.StepReceipt
			patch["payment"] = map[string]any(completion.Data)
		}
	case flow.StepReceipt:
		c.step = ""
		c.active = false
		c.mu.Unlock()
		c.cfg.OnStep(completion.Step, completion.Data)
		if err := c.ShowWelcome(ctx); err != nil {
			c.logger.Error().Err(err).Msg("reset to welcome failed")
		}
		return
	default:
		c.mu.Unlock()
		c.cfg.OnStep(completion.Step, completion.Data)
		return
	}

	c.step = next
	patch["currentStep"] = next
	c.mu.Unlock()

	c.cfg.OnStep(completion.Step, completion.Data)
	if err := c.send(ctx, display.TypeUpdateFlow, patch); err != nil {
		c.logger.Error().Err(err).Str("step", next).Msg("step advance failed")
	}
}

func (c *Controller) writeMirror(ctx context.Context, co Checkout) error {
	setter, ok := c.cfg.Mirror.(channel.MirrorWriter)
	if !ok {
		return nil
	}
	doc := map[string]any{
		"state": map[string]any{
			"cart":        co.Items,
			"orderId":     co.OrderID,
			"cartSession": map[string]any{"orderId": co.OrderID},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return setter.Set(ctx, c.cfg.MirrorKey, raw)
}

func (c *Controller) send(ctx context.Context, msgType string, content display.Data) error {
	var body any
	if content != nil {
		body = content
	}
	payload, err := display.EncodeEnvelope(c.cfg.Sender, msgType, body)
	if err != nil {
		return err
	}
	return c.cfg.Out.Send(ctx, payload)
}
