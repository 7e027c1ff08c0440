package receipts_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/receipts"
)

func sampleJob() receipts.PrintJob {
	return receipts.PrintJob{
		OrderID: "ord_1",
		Items: []money.CartLine{
			{ID: "1", Name: "Za'atar Manakish", UnitPrice: 6.50, Quantity: 2},
			{ID: "2", Name: "Mint Lemonade", UnitPrice: 4.00, Quantity: 1},
		},
		Subtotal:      17.00,
		Tax:           1.40,
		Tip:           3.06,
		Total:         21.46,
		PaymentMethod: "card",
		CardBrand:     "Visa",
		CardLast4:     "4242",
		CompletedAt:   time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestRenderCardReceipt(t *testing.T) {
	text := receipts.Render(sampleJob())

	require.Contains(t, text, "ORDER ord_1")
	require.Contains(t, text, "2026-03-01 12:30")
	require.Contains(t, text, "Za'atar Manakish")
	require.Contains(t, text, "Tip")
	require.Contains(t, text, "21.46")
	require.Contains(t, text, "Visa ****4242")
	require.NotContains(t, text, "Change")
}

func TestRenderCashReceipt(t *testing.T) {
	job := sampleJob()
	job.PaymentMethod = "cash"
	job.Tip = 0
	job.CardBrand = ""
	job.CashTendered = 25.00
	job.ChangeGiven = 3.54

	text := receipts.Render(job)
	require.Contains(t, text, "Cash")
	require.Contains(t, text, "Change")
	require.Contains(t, text, "3.54")
	require.NotContains(t, text, "Tip")
	require.NotContains(t, text, "****")
}

func TestRenderTruncatesLongNames(t *testing.T) {
	job := sampleJob()
	job.Items = []money.CartLine{{ID: "1", Name: strings.Repeat("x", 40), UnitPrice: 1, Quantity: 1}}
	text := receipts.Render(job)
	require.Contains(t, text, strings.Repeat("x", 20))
	require.NotContains(t, text, strings.Repeat("x", 21))
}

type capturePrinter struct {
	printed []string
	err     error
}

func (p *capturePrinter) Print(_ context.Context, text string) error {
	if p.err != nil {
		return p.err
	}
	p.printed = append(p.printed, text)
	return nil
}

func TestWorkerPrintsJob(t *testing.T) {
	printer := &capturePrinter{}
	worker := receipts.NewWorker(printer, nil, zerolog.Nop())
	mux := asynq.NewServeMux()
	worker.Register(mux)

	payload := []byte(`{"orderId":"ord_1","items":[],"total":10,"paymentMethod":"cash"}`)
	task := asynq.NewTask(receipts.TaskPrint, payload)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Len(t, printer.printed, 1)
	require.Contains(t, printer.printed[0], "ORDER ord_1")
}

func TestWorkerSkipsRetryOnMalformedPayload(t *testing.T) {
	printer := &capturePrinter{}
	worker := receipts.NewWorker(printer, nil, zerolog.Nop())
	mux := asynq.NewServeMux()
	worker.Register(mux)

	task := asynq.NewTask(receipts.TaskPrint, []byte(`{{not json`))
	err := mux.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, printer.printed)
}
