package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/auth"
	"github.com/ajeen-pos/customer-display/internal/backoffice"
	"github.com/ajeen-pos/customer-display/internal/channel"
	"github.com/ajeen-pos/customer-display/internal/config"
	"github.com/ajeen-pos/customer-display/internal/display"
	"github.com/ajeen-pos/customer-display/internal/flow"
	"github.com/ajeen-pos/customer-display/internal/health"
	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/obs"
	"github.com/ajeen-pos/customer-display/internal/ratelimit"
	"github.com/ajeen-pos/customer-display/internal/receipts"
	"github.com/ajeen-pos/customer-display/internal/terminal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.AppEnv).With().Str("component", "displayd").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	httpMetrics := obs.NewHTTPMetrics(registry)
	displayMetrics := obs.NewDisplayMetrics(registry)

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	inbound, err := channel.NewRedisChannel(ctx, redisClient, cfg.DisplayTopic, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("subscribe display topic")
	}
	defer func() { _ = inbound.Close() }()

	replies, err := channel.NewRedisChannel(ctx, redisClient, cfg.ReplyTopic, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("subscribe reply topic")
	}
	defer func() { _ = replies.Close() }()

	mirror := channel.NewRedisMirror(redisClient, logger)

	session := display.NewSession(display.SessionConfig{
		Sender:     cfg.DisplaySessionID,
		Inbound:    inbound,
		Reply:      replies,
		Mirror:     mirror,
		MirrorKey:  cfg.CartMirrorKey,
		Calculator: money.Calculator{TaxRateBps: cfg.TaxRateBps},
		Timing: flow.Timing{
			Handshake:       cfg.HandshakeDelay,
			Settle:          cfg.SettleDelay,
			ReceiptComplete: cfg.ReceiptComplete,
			ReceiptDetails:  cfg.ReceiptDetails,
		},
		Terminal: terminal.Config{
			FailureRate: cfg.TerminalFailureRate,
			StageDelay:  cfg.TerminalStageDelay,
		},
		Logger:  logger,
		Metrics: displayMetrics,
	})
	if err := session.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start display session")
	}
	defer session.Close()

	redisOpts, _ := redis.ParseURL(cfg.RedisURL)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	})
	defer func() { _ = asynqClient.Close() }()
	boClient := backoffice.NewClient(cfg.BackofficeBaseURL, logger)
	enqueuer := receipts.NewEnqueuer(asynqClient, logger)
	unsubPayment := replies.OnMessage(onPaymentComplete(session, enqueuer, boClient, cfg.BackofficeBaseURL != "", logger))
	defer unsubPayment()

	limitMW, err := ratelimit.Middleware(redisClient, cfg.RateLimitRPM)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	boHandlers := backoffice.Handlers{Client: boClient}
	displayHandlers := display.NewHandlers(session)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics.Middleware)
	r.Use(obs.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", obs.Handler(registry))
	r.Mount("/debug", middleware.Profiler())

	healthHandler := health.Handler{Checker: readinessChecker{redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limitMW)
		v.Route("/display", displayHandlers.Routes)
		v.Route("/backoffice", func(b chi.Router) {
			b.Use(verifier.RequireAdmin)
			boHandlers.Routes(b)
		})
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("displayd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("displayd shutdown complete")
}

// onPaymentComplete watches the reply topic for successful payments: it
// queues the receipt and, when a back office is configured, submits the
// finished order, using the session's current snapshot for the line items.
func onPaymentComplete(session *display.Session, enqueuer *receipts.Enqueuer, boClient *backoffice.Client, submitOrders bool, logger zerolog.Logger) func([]byte) {
	return func(payload []byte) {
		env, err := display.DecodeEnvelope(payload, display.SenderDisplay)
		if err != nil || env.Type != display.TypeStepComplete {
			return
		}
		var completion display.StepCompletion
		if err := json.Unmarshal(env.Content, &completion); err != nil {
			return
		}
		if completion.Step != flow.StepPayment || completion.Data.String("status") != "success" {
			return
		}

		snap := session.Snapshot()
		job := receipts.PrintJob{
			OrderID:       completion.Data.String("orderId"),
			Items:         snap.Cart.Items,
			Subtotal:      snap.Cart.Subtotal,
			Discount:      snap.Cart.DiscountAmount,
			Tax:           snap.Cart.TaxAmount,
			Tip:           snap.Data.Child("tip").Float("tipAmount"),
			Total:         completion.Data.Float("amount"),
			PaymentMethod: completion.Data.String("method"),
			CashTendered:  completion.Data.Float("cashTendered"),
			ChangeGiven:   completion.Data.Float("changeGiven"),
			CompletedAt:   time.Now().UTC(),
		}
		if card := completion.Data.Child("cardInfo"); card != nil {
			job.CardBrand = card.String("brand")
			job.CardLast4 = card.String("last4")
		}
		if job.Total == 0 {
			job.Total = completion.Data.Float("amountPaid")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := enqueuer.Enqueue(ctx, job); err != nil {
			logger.Error().Err(err).Str("order_id", job.OrderID).Msg("queue receipt")
		}

		if !submitOrders {
			return
		}
		order := backoffice.Order{
			OrderID:        job.OrderID,
			Subtotal:       snap.Cart.Subtotal,
			DiscountAmount: snap.Cart.DiscountAmount,
			TaxAmount:      snap.Cart.TaxAmount,
			TipAmount:      job.Tip,
			Total:          job.Total,
			PaymentMethod:  job.PaymentMethod,
			TransactionID:  completion.Data.String("transactionId"),
		}
		if err := boClient.CreateOrder(ctx, order); err != nil {
			logger.Error().Err(err).Str("order_id", order.OrderID).Msg("submit order")
		}
	}
}

type readinessChecker struct {
	redis *redis.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(pingCtx).Err()
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
