package channel

import (
	"context"
	"sync"
)

// MemoryChannel is an in-process Channel used by tests and the embedded
// opener simulator. Delivery is synchronous and in send order.
type MemoryChannel struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Handler
}

// NewMemoryChannel returns an empty in-process channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: map[int]Handler{}}
}

// Send delivers the payload to every subscriber before returning.
func (c *MemoryChannel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// OnMessage registers a handler; the returned function unsubscribes it.
func (c *MemoryChannel) OnMessage(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// MemoryMirror is an in-process Mirror mimicking storage-event semantics:
// every Set notifies registered watchers with the fresh value.
type MemoryMirror struct {
	mu     sync.Mutex
	values map[string][]byte
	nextID int
	subs   map[string]map[int]Handler
}

// NewMemoryMirror returns an empty in-process mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{values: map[string][]byte{}, subs: map[string]map[int]Handler{}}
}

// Get returns the stored value for key, nil when absent.
func (m *MemoryMirror) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set stores the value and notifies watchers of the key.
func (m *MemoryMirror) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	handlers := make([]Handler, 0, len(m.subs[key]))
	for _, h := range m.subs[key] {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(value)
	}
	return nil
}

// OnChange registers a watcher for key.
func (m *MemoryMirror) OnChange(key string, h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	if m.subs[key] == nil {
		m.subs[key] = map[int]Handler{}
	}
	m.subs[key][id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[key], id)
	}
}
