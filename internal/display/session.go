package display

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/channel"
	"github.com/ajeen-pos/customer-display/internal/clock"
	"github.com/ajeen-pos/customer-display/internal/flow"
	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/obs"
	"github.com/ajeen-pos/customer-display/internal/terminal"
)

// SenderDisplay identifies this side on the reply topic.
const SenderDisplay = "customer-display"

// SessionConfig wires a display session.
type SessionConfig struct {
	// Sender is the opener id this session trusts. Messages from any other
	// sender are dropped.
	Sender string
	// Inbound carries opener-to-display messages.
	Inbound channel.Channel
	// Reply carries ready and step-complete signals back to the opener.
	Reply channel.Channel
	// Mirror and MirrorKey locate the opener's cart snapshot.
	Mirror    channel.Mirror
	MirrorKey string

	Calculator money.Calculator
	Clock      clock.Clock
	Timing     flow.Timing
	Terminal   terminal.Config
	Logger     zerolog.Logger
	Metrics    *obs.DisplayMetrics
}

// Session is one customer display: it consumes the opener's message stream,
// maintains the current view, and runs the checkout flow engine when a flow
// is active. It never terminates on bad input; the worst outcome of a
// malformed message is that the current view stays up.
type Session struct {
	cfg    SessionConfig
	logger zerolog.Logger

	mu       sync.Mutex
	resolver *Resolver
	engine   *flow.Engine
	closed   bool

	unsubMsg    func()
	unsubMirror func()
}

// NewSession constructs a session showing the welcome view.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	logger := cfg.Logger.With().Str("component", "session").Logger()
	s := &Session{cfg: cfg, logger: logger}
	s.resolver = NewResolver(s.mirrorOrderID, logger)
	s.engine = flow.NewEngine(flow.EngineConfig{
		Clock:      cfg.Clock,
		Timing:     cfg.Timing,
		Terminal:   cfg.Terminal,
		Logger:     logger,
		OnStep:     s.onStepComplete,
		OnTerminal: s.onTerminalOutcome,
	})
	return s
}

// Start loads the cart mirror, subscribes to both message paths and announces
// readiness so the opener knows it can start pushing state.
func (s *Session) Start(ctx context.Context) error {
	s.loadMirror(ctx)

	s.unsubMirror = s.cfg.Mirror.OnChange(s.cfg.MirrorKey, func(payload []byte) {
		s.applyMirror(payload)
	})
	s.unsubMsg = s.cfg.Inbound.OnMessage(func(payload []byte) {
		s.handleMessage(payload)
	})

	ready, err := EncodeEnvelope(SenderDisplay, TypeDisplayReady, nil)
	if err != nil {
		return err
	}
	if err := s.cfg.Reply.Send(ctx, ready); err != nil {
		return err
	}
	s.logger.Info().Msg("display ready")
	return nil
}

// Close unsubscribes and tears down any active flow step. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubMsg, unsubMirror := s.unsubMsg, s.unsubMirror
	s.engine.Teardown()
	s.mu.Unlock()

	if unsubMsg != nil {
		unsubMsg()
	}
	if unsubMirror != nil {
		unsubMirror()
	}
}

// Engine exposes the flow engine for the step action endpoints.
func (s *Session) Engine() *flow.Engine { return s.engine }

func (s *Session) loadMirror(ctx context.Context) {
	raw, err := s.cfg.Mirror.Get(ctx, s.cfg.MirrorKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("mirror read failed, starting empty")
		return
	}
	s.applyMirror(raw)
}

func (s *Session) applyMirror(raw []byte) {
	state, err := ParseMirrorState(raw)
	if err != nil {
		// Keep the last good snapshot rather than blanking the cart.
		s.logger.Warn().Err(err).Msg("malformed mirror snapshot ignored")
		return
	}
	s.mu.Lock()
	s.resolver.SetMirrorCart(state)
	sync := s.resolver.Mode() == ModeFlow || s.resolver.Mode() == ModeCart
	s.mu.Unlock()
	if sync {
		s.syncEngine()
	}
}

// mirrorOrderID is the last-resort order id source: the cart session block
// inside the mirrored snapshot.
func (s *Session) mirrorOrderID() string {
	return s.resolver.MirrorCart().Child("cartSession").String("orderId")
}

func (s *Session) handleMessage(payload []byte) {
	env, err := DecodeEnvelope(payload, s.cfg.Sender)
	if err != nil {
		reason := "malformed"
		if isUnknownSender(err) {
			reason = "unknown_sender"
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.MessagesRejected.WithLabelValues(reason).Inc()
		}
		s.logger.Warn().Err(err).Msg("message dropped")
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.MessagesReceived.WithLabelValues(env.Type).Inc()
	}

	s.mu.Lock()
	s.resolver.Apply(env)
	mode := s.resolver.Mode()
	s.mu.Unlock()

	if mode == ModeFlow {
		s.syncEngine()
	} else {
		s.engine.Teardown()
	}
}

// syncEngine rebuilds the flow context from the current document and pushes
// it into the engine.
func (s *Session) syncEngine() {
	s.mu.Lock()
	data := s.resolver.Data()
	mirror := s.resolver.MirrorCart()
	orderID := s.resolver.OrderID()
	s.mu.Unlock()

	cart := BuildCartView(s.cfg.Calculator, mirror, data, orderID)
	s.engine.Sync(BuildFlowContext(data, cart, orderID))
}

func (s *Session) onTerminalOutcome(outcome string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.TerminalAttempts.WithLabelValues(outcome).Inc()
	}
}

func (s *Session) onStepComplete(step string, data map[string]any) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StepsCompleted.WithLabelValues(step).Inc()
	}
	payload, err := EncodeEnvelope(SenderDisplay, TypeStepComplete, StepCompletion{
		Step: step,
		Data: Data(data),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("step", step).Msg("encode step completion")
		return
	}
	if err := s.cfg.Reply.Send(context.Background(), payload); err != nil {
		s.logger.Error().Err(err).Str("step", step).Msg("send step completion")
	}
}

// Snapshot is the full render state exposed over the HTTP surface.
type Snapshot struct {
	Mode                  Mode            `json:"mode"`
	Data                  Data            `json:"data"`
	Cart                  CartViewModel   `json:"cart"`
	OrderID               string          `json:"orderId,omitempty"`
	CurrentStep           string          `json:"currentStep,omitempty"`
	Progress              float64         `json:"progress"`
	TerminalStatus        terminal.Status `json:"terminalStatus,omitempty"`
	TerminalError         string          `json:"terminalError,omitempty"`
	CashStage             string          `json:"cashStage,omitempty"`
	ReceiptDetailsVisible bool            `json:"receiptDetailsVisible"`
}

// Snapshot returns the current render state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	mode := s.resolver.Mode()
	data := s.resolver.Data().Clone()
	mirror := s.resolver.MirrorCart()
	orderID := s.resolver.OrderID()
	s.mu.Unlock()

	snap := Snapshot{
		Mode:    mode,
		Data:    data,
		Cart:    BuildCartView(s.cfg.Calculator, mirror, data, orderID),
		OrderID: orderID,
	}
	if mode == ModeFlow {
		step := data.String("currentStep")
		snap.CurrentStep = step
		snap.Progress = flow.Progress(step)
		snap.ReceiptDetailsVisible = s.engine.ReceiptDetailsVisible()
		if card := s.engine.Card(); card != nil {
			snap.TerminalStatus = card.Status()
			snap.TerminalError = card.Err()
		}
		if cash := s.engine.Cash(); cash != nil {
			snap.CashStage = cash.Stage()
		}
	}
	return snap
}

func isUnknownSender(err error) bool {
	return errors.Is(err, ErrUnknownSender)
}
