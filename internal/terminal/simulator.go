// Package terminal models the asynchronous state progression of a
// card-present transaction. No hardware is involved; the contract preserved
// here is the shape and sequencing of states and payloads so a real reader
// driver can be substituted behind the same interface.
package terminal

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/clock"
)

// Status is one stage of a terminal transaction.
type Status string

// Transaction stages, in order of progression.
const (
	StatusIdle             Status = "idle"
	StatusConnecting       Status = "connecting"
	StatusReaderCheck      Status = "reader_check"
	StatusCreatingIntent   Status = "creating_intent"
	StatusWaitingForCard   Status = "waiting_for_card"
	StatusProcessingIntent Status = "processing_intent"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
)

// Reader describes the simulated hardware unit.
type Reader struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CardInfo is the card summary attached to a successful transaction.
type CardInfo struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// Result is the terminal's final payload on success.
type Result struct {
	Status        string   `json:"status"`
	Method        string   `json:"method"`
	TransactionID string   `json:"transactionId"`
	CardInfo      CardInfo `json:"cardInfo"`
	Amount        float64  `json:"amount"`
	Timestamp     string   `json:"timestamp"`
}

// PaymentRequest carries the amounts the terminal charges.
type PaymentRequest struct {
	OrderID   string
	Total     float64
	TipAmount float64
}

// StateHandler observes every status change. result is non-nil only on
// success; errMsg is non-empty only on error.
type StateHandler func(status Status, result *Result, errMsg string)

// Config tunes the simulator.
type Config struct {
	// FailureRate is the probability in [0,1] that an attempt fails.
	FailureRate float64
	// StageDelay is the pause between simulated stages.
	StageDelay time.Duration
	Reader     Reader
}

// Simulator walks a transaction through the terminal stages on a clock.
// All transitions are time-driven; errors never auto-retry.
type Simulator struct {
	cfg     Config
	clk     clock.Clock
	logger  zerolog.Logger
	rand    *rand.Rand
	handler StateHandler

	mu      sync.Mutex
	status  Status
	result  *Result
	errMsg  string
	attempt int
	timers  []clock.Timer
	live    bool
}

// NewSimulator constructs an idle simulator.
func NewSimulator(cfg Config, clk clock.Clock, logger zerolog.Logger) *Simulator {
	if cfg.StageDelay <= 0 {
		cfg.StageDelay = 600 * time.Millisecond
	}
	if cfg.Reader.Label == "" {
		cfg.Reader = Reader{ID: "sim-reader-1", Label: "Front Counter Reader"}
	}
	return &Simulator{
		cfg:    cfg,
		clk:    clk,
		logger: logger.With().Str("component", "terminal").Logger(),
		rand:   rand.New(rand.NewSource(clk.Now().UnixNano())),
		status: StatusIdle,
		live:   true,
	}
}

// OnState registers the single state observer.
func (s *Simulator) OnState(h StateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Status returns the current stage.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the success payload, nil before success.
func (s *Simulator) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the human-readable failure message, empty unless errored.
func (s *Simulator) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Reader returns the simulated reader info.
func (s *Simulator) Reader() Reader { return s.cfg.Reader }

// Process starts a transaction. Calling it while a transaction is in-flight
// is a no-op; after an error the caller re-arms via Process again (retry).
func (s *Simulator) Process(req PaymentRequest) {
	s.mu.Lock()
	switch s.status {
	case StatusIdle, StatusError:
	default:
		s.mu.Unlock()
		return
	}
	s.attempt++
	attempt := s.attempt
	s.result = nil
	s.errMsg = ""
	s.mu.Unlock()

	s.logger.Info().Str("order_id", req.OrderID).Int("attempt", attempt).
		Float64("amount", req.Total+req.TipAmount).Msg("terminal attempt started")

	stages := []Status{StatusConnecting, StatusReaderCheck, StatusCreatingIntent, StatusWaitingForCard, StatusProcessingIntent}
	s.transition(stages[0], nil, "")
	for i := 1; i < len(stages); i++ {
		stage := stages[i]
		s.schedule(time.Duration(i)*s.cfg.StageDelay, func() {
			s.transition(stage, nil, "")
		})
	}
	s.schedule(time.Duration(len(stages))*s.cfg.StageDelay, func() {
		s.settle(req)
	})
}

// Teardown cancels pending stage timers and silences the observer. Safe to
// call repeatedly.
func (s *Simulator) Teardown() {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.live = false
	s.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

func (s *Simulator) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}
	t := s.clk.AfterFunc(d, func() {
		s.mu.Lock()
		live := s.live
		s.mu.Unlock()
		if live {
			fn()
		}
	})
	s.timers = append(s.timers, t)
}

func (s *Simulator) settle(req PaymentRequest) {
	if s.rand.Float64() < s.cfg.FailureRate {
		msg := declineMessages[s.rand.Intn(len(declineMessages))]
		s.logger.Warn().Str("order_id", req.OrderID).Str("reason", msg).Msg("terminal attempt failed")
		s.transition(StatusError, nil, msg)
		return
	}
	brand := cardBrands[s.rand.Intn(len(cardBrands))]
	result := &Result{
		Status:        "success",
		Method:        "credit",
		TransactionID: "txn_" + uuid.NewString(),
		CardInfo: CardInfo{
			Brand: brand,
			Last4: fmt.Sprintf("%04d", s.rand.Intn(10000)),
		},
		Amount:    req.Total + req.TipAmount,
		Timestamp: s.clk.Now().UTC().Format(time.RFC3339),
	}
	s.logger.Info().Str("order_id", req.OrderID).Str("transaction_id", result.TransactionID).Msg("terminal attempt approved")
	s.transition(StatusSuccess, result, "")
}

func (s *Simulator) transition(status Status, result *Result, errMsg string) {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.result = result
	s.errMsg = errMsg
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(status, result, errMsg)
	}
}

var cardBrands = []string{"Visa", "Mastercard", "Amex", "Discover"}

var declineMessages = []string{
	"Card declined. Please try another card.",
	"Reader connection lost. Please try again.",
	"Transaction timed out at the terminal.",
}
