package opener_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/channel"
	"github.com/ajeen-pos/customer-display/internal/display"
	"github.com/ajeen-pos/customer-display/internal/flow"
	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/opener"
)

type openerFixture struct {
	controller *opener.Controller
	out        *channel.MemoryChannel
	replies    *channel.MemoryChannel
	mirror     *channel.MemoryMirror
	sent       []display.Envelope
}

func newOpenerFixture(t *testing.T) *openerFixture {
	t.Helper()
	f := &openerFixture{
		out:     channel.NewMemoryChannel(),
		replies: channel.NewMemoryChannel(),
		mirror:  channel.NewMemoryMirror(),
	}
	f.out.OnMessage(func(p []byte) {
		env, err := display.DecodeEnvelope(p, "pos-main")
		require.NoError(t, err)
		f.sent = append(f.sent, env)
	})
	f.controller = opener.NewController(opener.Config{
		Sender:    "pos-main",
		Out:       f.out,
		Replies:   f.replies,
		Mirror:    f.mirror,
		MirrorKey: "display:cart",
		Logger:    zerolog.Nop(),
	})
	f.controller.Start()
	t.Cleanup(f.controller.Close)
	return f
}

func (f *openerFixture) completeStep(t *testing.T, step string, data map[string]any) {
	t.Helper()
	payload, err := display.EncodeEnvelope(display.SenderDisplay, display.TypeStepComplete, display.StepCompletion{
		Step: step,
		Data: display.Data(data),
	})
	require.NoError(t, err)
	require.NoError(t, f.replies.Send(context.Background(), payload))
}

func (f *openerFixture) lastSent(t *testing.T) (string, display.Data) {
	t.Helper()
	require.NotEmpty(t, f.sent)
	env := f.sent[len(f.sent)-1]
	content, err := env.ContentData()
	require.NoError(t, err)
	return env.Type, content
}

func sampleCheckout(method string) opener.Checkout {
	return opener.Checkout{
		OrderID:       "ord_1",
		PaymentMethod: method,
		Items:         []money.CartLine{{ID: "1", Name: "Manakish", UnitPrice: 6.50, Quantity: 2}},
		Subtotal:      13.00,
		TaxAmount:     1.07,
		Total:         14.07,
		SkipRewards:   true,
	}
}

func TestBeginCardCheckoutStartsAtTip(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCredit)))

	msgType, content := f.lastSent(t)
	require.Equal(t, display.TypeStartFlow, msgType)
	require.Equal(t, flow.StepTip, content.String("currentStep"))
	require.Equal(t, "ord_1", content.String("orderId"))
	require.InDelta(t, 14.07, content.Float("currentPaymentAmount"), 0.001)
	require.False(t, content.Bool("isSplitPayment"))
}

func TestBeginCashCheckoutSkipsTip(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCash)))

	_, content := f.lastSent(t)
	require.Equal(t, flow.StepPayment, content.String("currentStep"))
}

func TestBeginWithRewardsStartsThere(t *testing.T) {
	f := newOpenerFixture(t)
	co := sampleCheckout(flow.MethodCredit)
	co.SkipRewards = false
	require.NoError(t, f.controller.Begin(context.Background(), co))

	_, content := f.lastSent(t)
	require.Equal(t, flow.StepRewards, content.String("currentStep"))
}

func TestBeginWritesCartMirror(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCredit)))

	raw, err := f.mirror.Get(context.Background(), "display:cart")
	require.NoError(t, err)
	var doc struct {
		State display.Data `json:"state"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "ord_1", doc.State.String("orderId"))
}

func TestTipCompletionAdvancesToPayment(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCredit)))

	f.completeStep(t, flow.StepTip, map[string]any{"tipAmount": 2.11})
	msgType, content := f.lastSent(t)
	require.Equal(t, display.TypeUpdateFlow, msgType)
	require.Equal(t, flow.StepPayment, content.String("currentStep"))
	require.InDelta(t, 2.11, content.Child("tip").Float("tipAmount"), 0.001)
}

func TestPaymentCompletionAdvancesToReceipt(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCredit)))

	f.completeStep(t, flow.StepPayment, map[string]any{"status": "success", "method": "card"})
	_, content := f.lastSent(t)
	require.Equal(t, flow.StepReceipt, content.String("currentStep"))
}

func TestSplitPaymentContinuesUntilCovered(t *testing.T) {
	f := newOpenerFixture(t)
	co := sampleCheckout(flow.MethodCredit)
	co.SplitAmount = 10.00
	require.NoError(t, f.controller.Begin(context.Background(), co))

	_, content := f.lastSent(t)
	require.True(t, content.Bool("isSplitPayment"))
	require.InDelta(t, 10.00, content.Float("currentPaymentAmount"), 0.001)

	// First tender done: 4.07 outstanding, so a second leg starts at tip.
	f.completeStep(t, flow.StepPayment, map[string]any{"status": "success"})
	msgType, content := f.lastSent(t)
	require.Equal(t, display.TypeUpdateFlow, msgType)
	require.Equal(t, flow.StepTip, content.String("currentStep"))
	require.InDelta(t, 4.07, content.Float("currentPaymentAmount"), 0.001)
	require.InDelta(t, 10.00, content.Float("amountPaid"), 0.001)
	require.InDelta(t, 14.07, content.Float("originalTotal"), 0.001)
	split := content.Child("splitDetails")
	require.NotNil(t, split)
	require.InDelta(t, 1, split.Float("currentSplitIndex"), 0.001)
	require.InDelta(t, 4.07, split.Float("remainingAmount"), 0.001)

	f.completeStep(t, flow.StepTip, map[string]any{"tipAmount": 0.0})
	f.completeStep(t, flow.StepPayment, map[string]any{"status": "success"})
	_, content = f.lastSent(t)
	require.Equal(t, flow.StepReceipt, content.String("currentStep"))
}

func TestReceiptCompletionResetsToWelcome(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCash)))

	f.completeStep(t, flow.StepPayment, map[string]any{"status": "success", "method": "cash"})
	f.completeStep(t, flow.StepReceipt, map[string]any{"status": "complete"})

	msgType, _ := f.lastSent(t)
	require.Equal(t, display.TypeShowWelcome, msgType)
	require.Empty(t, f.controller.Step())
}

func TestRecordCashPayment(t *testing.T) {
	f := newOpenerFixture(t)
	require.NoError(t, f.controller.Begin(context.Background(), sampleCheckout(flow.MethodCash)))

	require.NoError(t, f.controller.RecordCashPayment(context.Background(), 20.00, 5.93, true))
	msgType, content := f.lastSent(t)
	require.Equal(t, display.TypeDirectCashUpdate, msgType)
	require.True(t, content.Bool("cashPaymentComplete"))
	require.InDelta(t, 20.00, content.Child("cashData").Float("cashTendered"), 0.001)
	require.InDelta(t, 5.93, content.Child("cashData").Float("change"), 0.001)
	require.InDelta(t, 14.07, content.Child("cashData").Float("amountPaid"), 0.001)
}
