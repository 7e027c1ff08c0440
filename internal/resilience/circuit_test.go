package resilience_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/resilience"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := resilience.NewBreaker("backoffice", 4, 0.5, time.Minute, zerolog.Nop())

	b.Report(true)
	b.Report(false)
	b.Report(false)
	require.Equal(t, resilience.Closed, b.State(), "below minimum request count")

	b.Report(false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow())
}

func TestBreakerStaysClosedOnSuccesses(t *testing.T) {
	b := resilience.NewBreaker("backoffice", 2, 0.5, time.Minute, zerolog.Nop())
	for i := 0; i < 10; i++ {
		require.True(t, b.Allow())
		b.Report(true)
	}
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := resilience.NewBreaker("backoffice", 1, 0.5, 10*time.Millisecond, zerolog.Nop())
	b.Report(false)
	require.Equal(t, resilience.Open, b.State())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow(), "cool-off elapsed, probe allowed")
	require.Equal(t, resilience.HalfOpen, b.State())

	b.Report(false)
	require.Equal(t, resilience.Open, b.State())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())
	b.Report(true)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBackoffGrowsExponentially(t *testing.T) {
	require.Equal(t, 100*time.Millisecond, resilience.Backoff(100*time.Millisecond, 1, 0))
	require.Equal(t, 200*time.Millisecond, resilience.Backoff(100*time.Millisecond, 2, 0))
	require.Equal(t, 800*time.Millisecond, resilience.Backoff(100*time.Millisecond, 4, 0))
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := resilience.Backoff(base, 1, 0.2)
		require.GreaterOrEqual(t, d, 80*time.Millisecond)
		require.LessOrEqual(t, d, 120*time.Millisecond)
	}
}
