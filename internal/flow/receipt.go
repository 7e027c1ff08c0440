package flow

import (
	"sync"
	"time"

	"github.com/ajeen-pos/customer-display/internal/clock"
)

// receiptController renders the final confirmation view. Two independent
// timers run from mount: a short one that reports the step complete, and a
// longer one that reveals the transaction detail panel. Neither waits on the
// other, so completion is never delayed by the reveal.
type receiptController struct {
	mu       sync.Mutex
	clk      clock.Clock
	complete CompletionHandler

	completeTimer clock.Timer
	detailsTimer  clock.Timer
	details       bool
	done          bool
}

func newReceiptController(clk clock.Clock, timing Timing, complete CompletionHandler) *receiptController {
	r := &receiptController{clk: clk, complete: complete}
	r.completeTimer = clk.AfterFunc(timing.ReceiptComplete, func() {
		r.mu.Lock()
		if r.done {
			r.mu.Unlock()
			return
		}
		r.done = true
		r.completeTimer = nil
		r.mu.Unlock()
		r.complete(StepReceipt, map[string]any{
			"status":    "complete",
			"timestamp": clk.Now().UTC().Format(time.RFC3339),
		})
	})
	r.detailsTimer = clk.AfterFunc(timing.ReceiptDetails, func() {
		r.mu.Lock()
		r.details = true
		r.detailsTimer = nil
		r.mu.Unlock()
	})
	return r
}

func (r *receiptController) detailsVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.details
}

func (r *receiptController) update(Context) {}

func (r *receiptController) teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeTimer != nil {
		r.completeTimer.Stop()
		r.completeTimer = nil
	}
	if r.detailsTimer != nil {
		r.detailsTimer.Stop()
		r.detailsTimer = nil
	}
}
