// Command opener-sim drives a scripted checkout against a running displayd,
// standing in for the cashier-facing register. It is the reference client for
// the wire protocol and doubles as a smoke test for a deployed station.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/channel"
	"github.com/ajeen-pos/customer-display/internal/config"
	"github.com/ajeen-pos/customer-display/internal/display"
	"github.com/ajeen-pos/customer-display/internal/flow"
	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/obs"
	"github.com/ajeen-pos/customer-display/internal/opener"
)

func main() {
	method := flag.String("method", "credit", "payment method: credit or cash")
	split := flag.Float64("split", 0, "first tender amount for a split payment")
	skipRewards := flag.Bool("skip-rewards", true, "skip the rewards step")
	wait := flag.Duration("wait", 2*time.Minute, "how long to wait for the flow to finish")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.AppEnv).With().Str("component", "opener-sim").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	out, err := channel.NewRedisChannel(ctx, client, cfg.DisplayTopic, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open display topic")
	}
	defer func() { _ = out.Close() }()

	replies, err := channel.NewRedisChannel(ctx, client, cfg.ReplyTopic, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open reply topic")
	}
	defer func() { _ = replies.Close() }()

	done := make(chan struct{})
	controller := opener.NewController(opener.Config{
		Sender:    cfg.DisplaySessionID,
		Out:       out,
		Replies:   replies,
		Mirror:    channel.NewRedisMirror(client, logger),
		MirrorKey: cfg.CartMirrorKey,
		Logger:    logger,
		OnStep: func(step string, data display.Data) {
			logger.Info().Str("step", step).Interface("data", map[string]any(data)).Msg("step completed")
			if step == flow.StepReceipt {
				close(done)
			}
		},
	})
	controller.Start()
	defer controller.Close()

	checkout := sampleCheckout(*method, *split, *skipRewards)
	logger.Info().Str("order_id", checkout.OrderID).Str("method", checkout.PaymentMethod).
		Float64("total", checkout.Total).Msg("starting checkout")
	if err := controller.Begin(ctx, checkout); err != nil {
		logger.Fatal().Err(err).Msg("begin checkout")
	}

	if checkout.PaymentMethod == flow.MethodCash {
		simulateCashDrawer(ctx, controller, checkout, logger)
	}

	select {
	case <-done:
		logger.Info().Msg("checkout complete")
	case <-time.After(*wait):
		logger.Error().Msg("checkout did not finish in time")
	case <-ctx.Done():
	}
}

func sampleCheckout(method string, split float64, skipRewards bool) opener.Checkout {
	items := []money.CartLine{
		{ID: uuid.NewString(), Name: "Za'atar Manakish", UnitPrice: 6.50, Quantity: 2},
		{ID: uuid.NewString(), Name: "Cheese Fatayer", UnitPrice: 5.25, Quantity: 1},
		{ID: uuid.NewString(), Name: "Mint Lemonade", UnitPrice: 4.00, Quantity: 2, DiscountPercent: 10},
	}
	calc := money.Calculator{TaxRateBps: 825}
	totals := calc.Totals(items, nil)
	return opener.Checkout{
		OrderID:        "ord_" + uuid.NewString(),
		PaymentMethod:  method,
		Items:          items,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		SplitAmount:    split,
		SkipRewards:    skipRewards,
	}
}

// simulateCashDrawer tenders a round bill after a short pause, the way a
// cashier would count cash while the display shows the processing view.
func simulateCashDrawer(ctx context.Context, controller *opener.Controller, co opener.Checkout, logger zerolog.Logger) {
	time.Sleep(2 * time.Second)
	due := co.Total
	if co.SplitAmount > 0 && co.SplitAmount < co.Total {
		due = co.SplitAmount
	}
	tendered := float64(int(due/10)+1) * 10
	change := money.RoundCurrency(tendered - due)
	if err := controller.RecordCashPayment(ctx, tendered, change, true); err != nil {
		logger.Error().Err(err).Msg("record cash payment")
	}
}
