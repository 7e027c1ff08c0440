package display

import (
	"github.com/rs/zerolog"
)

// Mode identifies the top-level view the display renders.
type Mode string

// Display modes. Custom renders a raw dump of whatever payload arrived,
// which is only reachable through unrecognized CUSTOMER_DISPLAY_UPDATE data.
const (
	ModeWelcome Mode = "welcome"
	ModeCart    Mode = "cart"
	ModeFlow    Mode = "flow"
	ModeCustom  Mode = "custom"
)

// Resolver interprets incoming envelopes and decides which view the display
// shows. It never terminates; it runs for the lifetime of the display window
// and degrades to its last known good state on any bad input.
type Resolver struct {
	mode       Mode
	data       Data
	mirrorCart Data

	// fallbackOrderID stands in for the original global cart-session
	// lookup; it is injected at construction so the resolver never
	// reaches into shared state mid-render.
	fallbackOrderID func() string
	logger          zerolog.Logger
}

// NewResolver returns a resolver in the welcome state.
func NewResolver(fallbackOrderID func() string, logger zerolog.Logger) *Resolver {
	if fallbackOrderID == nil {
		fallbackOrderID = func() string { return "" }
	}
	return &Resolver{
		mode:            ModeWelcome,
		data:            Data{},
		fallbackOrderID: fallbackOrderID,
		logger:          logger.With().Str("component", "resolver").Logger(),
	}
}

// Mode returns the current display mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Data returns the accumulated display document.
func (r *Resolver) Data() Data { return r.data }

// MirrorCart returns the last cart snapshot loaded from the mirror.
func (r *Resolver) MirrorCart() Data { return r.mirrorCart }

// SetMirrorCart records a fresh cart snapshot read from the mirror.
func (r *Resolver) SetMirrorCart(cart Data) {
	if cart == nil {
		cart = Data{}
	}
	r.mirrorCart = cart
}

// OrderID resolves the effective order id: display document first, then the
// mirrored cart, then the session fallback.
func (r *Resolver) OrderID() string {
	if id := r.data.String("orderId"); id != "" {
		return id
	}
	if id := r.mirrorCart.String("orderId"); id != "" {
		return id
	}
	return r.fallbackOrderID()
}

// Apply folds one envelope into the resolver state. Malformed content is
// logged and dropped; the current view is always preserved.
func (r *Resolver) Apply(env Envelope) {
	content, err := env.ContentData()
	if err != nil {
		r.logger.Warn().Err(err).Str("type", env.Type).Msg("drop malformed content")
		return
	}

	switch env.Type {
	case TypeShowWelcome:
		// Unconditional from any state. The flow session is destroyed.
		r.mode = ModeWelcome
		r.data = Data{}
	case TypeShowCart:
		r.mode = ModeCart
		r.data = Merge(r.data, Data{"currentStep": "cart"})
	case TypeDisplayUpdate:
		r.data = content
		r.mode = modeFrom(content.String("displayMode"))
	case TypeStartFlow:
		r.mode = ModeFlow
		r.data = MergeFlowStart(content, r.mirrorCart, r.fallbackOrderID())
	case TypeUpdateFlow:
		r.data = MergeFlowUpdate(r.data, content)
	case TypeDirectCashUpdate:
		r.data = Merge(r.data, content)
	default:
		// Reverse-direction signals share the decoder but carry no
		// display state.
	}
}

func modeFrom(value string) Mode {
	switch Mode(value) {
	case ModeWelcome, ModeCart, ModeFlow, ModeCustom:
		return Mode(value)
	default:
		return ModeCustom
	}
}
