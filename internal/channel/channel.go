// Package channel carries display traffic between the opener (cashier) side
// and the customer display. It abstracts the original cross-window transport
// as a broadcast channel plus a key-value mirror of cart state used as a
// bootstrap/fallback path.
package channel

import "context"

// Handler receives one raw message payload. Handlers run sequentially in
// arrival order; the channel gives no ordering guarantee between the direct
// message path and the mirror path, so handlers must tolerate late or
// duplicate delivery.
type Handler func(payload []byte)

// Channel is a one-directional broadcast stream of JSON payloads.
type Channel interface {
	// Send publishes a payload. Delivery is at-least-once, most recent wins.
	Send(ctx context.Context, payload []byte) error
	// OnMessage registers a handler and returns an unsubscribe function.
	// Unsubscribing is idempotent.
	OnMessage(h Handler) (unsubscribe func())
}

// Mirror is a single-writer key-value snapshot of cart state. The display
// only reads; the opener's cart module owns writes.
type Mirror interface {
	// Get returns the current value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// OnChange notifies the handler with the new value whenever another
	// process rewrites key. A process does not observe its own writes.
	OnChange(key string, h Handler) (unsubscribe func())
}

// MirrorWriter is the opener-side extension of Mirror. The display never
// writes, so the write capability stays out of the base interface.
type MirrorWriter interface {
	Mirror
	Set(ctx context.Context, key string, value []byte) error
}
