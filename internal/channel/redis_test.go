package channel_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/channel"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisChannelRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	ch, err := channel.NewRedisChannel(ctx, client, "display:test", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()

	var mu sync.Mutex
	var got [][]byte
	ch.OnMessage(func(p []byte) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	require.NoError(t, ch.Send(ctx, []byte(`{"type":"SHOW_CART"}`)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.JSONEq(t, `{"type":"SHOW_CART"}`, string(got[0]))
	mu.Unlock()
}

func TestRedisChannelCloseIsIdempotent(t *testing.T) {
	client := newTestRedis(t)
	ch, err := channel.NewRedisChannel(context.Background(), client, "display:test", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
}

func TestRedisChannelRequiresClientAndTopic(t *testing.T) {
	_, err := channel.NewRedisChannel(context.Background(), nil, "topic", zerolog.Nop())
	require.Error(t, err)

	client := newTestRedis(t)
	_, err = channel.NewRedisChannel(context.Background(), client, "", zerolog.Nop())
	require.Error(t, err)
}

func TestRedisMirrorGetSetAndNotify(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	mirror := channel.NewRedisMirror(client, zerolog.Nop())

	val, err := mirror.Get(ctx, "display:cart")
	require.NoError(t, err)
	require.Nil(t, val, "missing keys read as nil, not an error")

	var mu sync.Mutex
	var seen [][]byte
	unsub := mirror.OnChange("display:cart", func(p []byte) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	defer unsub()

	// Give the subscription a moment to establish before publishing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, mirror.Set(ctx, "display:cart", []byte(`{"state":{"orderId":"ord_1"}}`)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	val, err = mirror.Get(ctx, "display:cart")
	require.NoError(t, err)
	require.JSONEq(t, `{"state":{"orderId":"ord_1"}}`, string(val))

	unsub()
	unsub()
}
