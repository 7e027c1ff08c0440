// Package receipts renders printed receipts off the request path. The
// display enqueues a print job as soon as the receipt step completes; the
// worker process formats and dispatches it so a slow printer never blocks
// the checkout flow.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/ajeen-pos/customer-display/internal/money"
	"github.com/ajeen-pos/customer-display/internal/obs"
)

// TaskPrint is the asynq task type for a receipt print job.
const TaskPrint = "receipt:print"

// PrintJob carries everything needed to render one receipt.
type PrintJob struct {
	OrderID       string           `json:"orderId"`
	Items         []money.CartLine `json:"items"`
	Subtotal      float64          `json:"subtotal"`
	Discount      float64          `json:"discount"`
	Tax           float64          `json:"tax"`
	Tip           float64          `json:"tip"`
	Total         float64          `json:"total"`
	PaymentMethod string           `json:"paymentMethod"`
	CardBrand     string           `json:"cardBrand,omitempty"`
	CardLast4     string           `json:"cardLast4,omitempty"`
	CashTendered  float64          `json:"cashTendered,omitempty"`
	ChangeGiven   float64          `json:"changeGiven,omitempty"`
	CompletedAt   time.Time        `json:"completedAt"`
}

// Enqueuer submits print jobs to the queue.
type Enqueuer struct {
	client *asynq.Client
	logger zerolog.Logger
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client, logger zerolog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger.With().Str("component", "receipts").Logger()}
}

// Enqueue queues a print job. Failed prints retry with asynq's default
// backoff; a receipt older than an hour is not worth printing.
func (e *Enqueuer) Enqueue(ctx context.Context, job PrintJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("receipts: encode job: %w", err)
	}
	task := asynq.NewTask(TaskPrint, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		return fmt.Errorf("receipts: enqueue: %w", err)
	}
	e.logger.Info().Str("order_id", job.OrderID).Msg("receipt queued")
	return nil
}

// Printer renders the receipt to its output device. The default prints to
// the process log; a real driver satisfies the same interface.
type Printer interface {
	Print(ctx context.Context, text string) error
}

// LogPrinter writes receipts to the logger. Used in development and tests.
type LogPrinter struct {
	Logger zerolog.Logger
}

// Print logs the rendered receipt.
func (p LogPrinter) Print(_ context.Context, text string) error {
	p.Logger.Info().Str("receipt", text).Msg("receipt printed")
	return nil
}

// Worker consumes print jobs.
type Worker struct {
	printer Printer
	metrics *obs.DisplayMetrics
	logger  zerolog.Logger
}

// NewWorker wires the print handler.
func NewWorker(printer Printer, metrics *obs.DisplayMetrics, logger zerolog.Logger) *Worker {
	return &Worker{
		printer: printer,
		metrics: metrics,
		logger:  logger.With().Str("component", "receipts").Logger(),
	}
}

// Register mounts the worker's handlers on mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskPrint, w.handlePrint)
}

func (w *Worker) handlePrint(ctx context.Context, task *asynq.Task) error {
	var job PrintJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		// A payload that never decodes will never decode; do not retry.
		w.logger.Error().Err(err).Msg("malformed print job dropped")
		return fmt.Errorf("receipts: decode job: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.printer.Print(ctx, Render(job)); err != nil {
		return fmt.Errorf("receipts: print order %s: %w", job.OrderID, err)
	}
	if w.metrics != nil {
		w.metrics.ReceiptsPrinted.Inc()
	}
	return nil
}

// Render formats a job as fixed-width receipt text.
func Render(job PrintJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ORDER %s\n", job.OrderID)
	fmt.Fprintf(&b, "%s\n", job.CompletedAt.Format("2006-01-02 15:04"))
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, item := range job.Items {
		fmt.Fprintf(&b, "%-20s %2dx %7.2f\n", truncate(item.Name, 20), item.Quantity, item.UnitPrice)
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")
	fmt.Fprintf(&b, "%-24s %7.2f\n", "Subtotal", job.Subtotal)
	if job.Discount > 0 {
		fmt.Fprintf(&b, "%-24s %7.2f\n", "Discount", -job.Discount)
	}
	fmt.Fprintf(&b, "%-24s %7.2f\n", "Tax", job.Tax)
	if job.Tip > 0 {
		fmt.Fprintf(&b, "%-24s %7.2f\n", "Tip", job.Tip)
	}
	fmt.Fprintf(&b, "%-24s %7.2f\n", "TOTAL", job.Total)
	switch job.PaymentMethod {
	case "cash":
		fmt.Fprintf(&b, "%-24s %7.2f\n", "Cash", job.CashTendered)
		fmt.Fprintf(&b, "%-24s %7.2f\n", "Change", job.ChangeGiven)
	default:
		if job.CardBrand != "" {
			fmt.Fprintf(&b, "%s ****%s\n", job.CardBrand, job.CardLast4)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
