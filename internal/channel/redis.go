package channel

import (
	"context"
	"errors"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisChannel broadcasts payloads over a Redis pub/sub topic.
type RedisChannel struct {
	client *redis.Client
	topic  string
	logger zerolog.Logger

	mu      sync.Mutex
	nextID  int
	subs    map[int]Handler
	pubsub  *redis.PubSub
	closed  bool
	stopped chan struct{}
}

// NewRedisChannel subscribes to topic and starts dispatching incoming
// payloads to registered handlers.
func NewRedisChannel(ctx context.Context, client *redis.Client, topic string, logger zerolog.Logger) (*RedisChannel, error) {
	if client == nil {
		return nil, errors.New("channel: redis client is required")
	}
	if topic == "" {
		return nil, errors.New("channel: topic is required")
	}
	c := &RedisChannel{
		client:  client,
		topic:   topic,
		logger:  logger.With().Str("component", "channel").Str("topic", topic).Logger(),
		subs:    map[int]Handler{},
		stopped: make(chan struct{}),
	}
	c.pubsub = client.Subscribe(ctx, topic)
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		return nil, err
	}
	go c.dispatch()
	return c, nil
}

// Send publishes the payload to the topic.
func (c *RedisChannel) Send(ctx context.Context, payload []byte) error {
	return c.client.Publish(ctx, c.topic, payload).Err()
}

// OnMessage registers a handler for incoming payloads.
func (c *RedisChannel) OnMessage(h Handler) func() {
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

// Close tears down the subscription. Safe to call more than once.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	err := c.pubsub.Close()
	<-c.stopped
	return err
}

func (c *RedisChannel) dispatch() {
	defer close(c.stopped)
	for msg := range c.pubsub.Channel() {
		c.mu.Lock()
		handlers := make([]Handler, 0, len(c.subs))
		for _, h := range c.subs {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h([]byte(msg.Payload))
		}
	}
}

// RedisMirror reads the persisted cart snapshot from a Redis key. Writers
// announce rewrites on a companion topic because Redis, like the browser
// storage event, does not notify a connection of its own writes.
type RedisMirror struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisMirror wraps the client for mirror reads and change notifications.
func NewRedisMirror(client *redis.Client, logger zerolog.Logger) *RedisMirror {
	return &RedisMirror{client: client, logger: logger.With().Str("component", "mirror").Logger()}
}

// MirrorTopic is the pub/sub topic carrying change announcements for key.
func MirrorTopic(key string) string { return "mirror:" + key }

// Get returns the raw value at key, or nil when absent.
func (m *RedisMirror) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set writes the value and announces the change. Only the opener side calls
// this; the display treats the mirror as read-only.
func (m *RedisMirror) Set(ctx context.Context, key string, value []byte) error {
	if err := m.client.Set(ctx, key, value, 0).Err(); err != nil {
		return err
	}
	return m.client.Publish(ctx, MirrorTopic(key), value).Err()
}

// OnChange re-reads the key whenever a change announcement arrives and hands
// the fresh value to the handler.
func (m *RedisMirror) OnChange(key string, h Handler) func() {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := m.client.Subscribe(ctx, MirrorTopic(key))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pubsub.Channel() {
			val, err := m.Get(ctx, key)
			if err != nil {
				m.logger.Warn().Err(err).Str("key", key).Msg("reload mirror after change")
				continue
			}
			h(val)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
		})
	}
}
