package flow_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/clock"
	"github.com/ajeen-pos/customer-display/internal/flow"
)

func TestProgress(t *testing.T) {
	require.InDelta(t, 20, flow.Progress(flow.StepCart), 0.001)
	require.InDelta(t, 60, flow.Progress(flow.StepTip), 0.001)
	require.InDelta(t, 100, flow.Progress(flow.StepReceipt), 0.001)
	require.Zero(t, flow.Progress("mystery-step"), "unknown steps report no progress")
	require.Zero(t, flow.Progress(""))
}

func TestEngineRemountsOnStepChange(t *testing.T) {
	engine := flow.NewEngine(flow.EngineConfig{Clock: clock.NewFake(time.Now()), Logger: zerolog.Nop()})

	engine.Sync(flow.Context{CurrentStep: flow.StepTip})
	first := engine.Tip()
	require.NotNil(t, first)

	// Same step again: the controller survives.
	engine.Sync(flow.Context{CurrentStep: flow.StepTip, Total: 10})
	require.Same(t, first, engine.Tip())

	engine.Sync(flow.Context{CurrentStep: flow.StepRewards})
	require.Nil(t, engine.Tip())
	require.NotNil(t, engine.Rewards())
}

func TestEngineRemountsOnPaymentMethodChange(t *testing.T) {
	engine := flow.NewEngine(flow.EngineConfig{Clock: clock.NewFake(time.Now()), Logger: zerolog.Nop()})

	engine.Sync(flow.Context{CurrentStep: flow.StepPayment, PaymentMethod: flow.MethodCash})
	require.NotNil(t, engine.Cash())
	require.Nil(t, engine.Card())

	engine.Sync(flow.Context{CurrentStep: flow.StepPayment, PaymentMethod: flow.MethodCredit})
	require.Nil(t, engine.Cash())
	require.NotNil(t, engine.Card())
}

func TestEngineUnknownStepMountsNothing(t *testing.T) {
	engine := flow.NewEngine(flow.EngineConfig{Clock: clock.NewFake(time.Now()), Logger: zerolog.Nop()})
	engine.Sync(flow.Context{CurrentStep: "mystery-step"})
	require.Nil(t, engine.Tip())
	require.Nil(t, engine.Cash())
	require.Nil(t, engine.Card())
	require.Nil(t, engine.Rewards())
	require.Equal(t, "mystery-step", engine.Step())
}

func TestDefaultTiming(t *testing.T) {
	timing := flow.DefaultTiming()
	require.Equal(t, 1500*time.Millisecond, timing.Handshake)
	require.Equal(t, 2*time.Second, timing.Settle)
	require.Equal(t, 150*time.Millisecond, timing.ReceiptComplete)
	require.Equal(t, 1800*time.Millisecond, timing.ReceiptDetails)
}
