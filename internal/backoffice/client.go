// Package backoffice talks to the POS back-office REST API on behalf of the
// display daemon: order submission after checkout, payment lookups and the
// location and reader directories. Every call runs through the resilience
// wrapper so a degraded back office cannot stall the display.
package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ajeen-pos/customer-display/internal/common"
	"github.com/ajeen-pos/customer-display/internal/resilience"
)

// Order is the order document submitted once a checkout flow finishes.
type Order struct {
	OrderID        string  `json:"orderId"`
	LocationID     string  `json:"locationId,omitempty"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	TipAmount      float64 `json:"tipAmount"`
	Total          float64 `json:"total"`
	PaymentMethod  string  `json:"paymentMethod"`
	TransactionID  string  `json:"transactionId,omitempty"`
}

// Payment is the back office's record of a settled payment.
type Payment struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	Status    string  `json:"status"`
	Method    string  `json:"method"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"createdAt"`
}

// Location is one store in the back-office directory.
type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// TerminalReader is a registered card reader.
type TerminalReader struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
}

// Client calls the back-office API.
type Client struct {
	base   string
	http   resilience.HTTPClient
	logger zerolog.Logger
}

// NewClient constructs a client rooted at baseURL. Requests are traced,
// retried twice with backoff and guarded by a circuit breaker.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	breaker := resilience.NewBreaker("backoffice", 5, 0.5, 30*time.Second, logger)
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     breaker,
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     5 * time.Second,
		},
		logger: logger.With().Str("component", "backoffice").Logger(),
	}
}

// CreateOrder submits a finished order.
func (c *Client) CreateOrder(ctx context.Context, order Order) error {
	return c.do(ctx, http.MethodPost, "/orders/", order, nil)
}

// GetPayment fetches a payment by id.
func (c *Client) GetPayment(ctx context.Context, id string) (Payment, error) {
	var payment Payment
	err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &payment)
	return payment, err
}

// ListLocations fetches the store directory.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	err := c.do(ctx, http.MethodGet, "/locations/", nil, &locations)
	return locations, err
}

// ListTerminalReaders fetches the registered readers.
func (c *Client) ListTerminalReaders(ctx context.Context) ([]TerminalReader, error) {
	var readers []TerminalReader
	err := c.do(ctx, http.MethodGet, "/terminal-readers/", nil, &readers)
	return readers, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backoffice: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if errors.Is(err, resilience.ErrOpenCircuit) {
			return &common.AppError{
				Code:       "BACKOFFICE_UNAVAILABLE",
				Message:    "back office temporarily unavailable",
				HTTPStatus: http.StatusServiceUnavailable,
				Retryable:  true,
				Err:        err,
			}
		}
		return &common.AppError{
			Code:       "BACKOFFICE_ERROR",
			Message:    fmt.Sprintf("backoffice: %s %s failed", method, path),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Err:        err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		// Non-retryable: the wrapper already retried anything transient, so a
		// 4xx here means the request itself was rejected.
		return &common.AppError{
			Code:       "BACKOFFICE_ERROR",
			Message:    fmt.Sprintf("backoffice: %s %s: status %d", method, path, resp.StatusCode),
			HTTPStatus: http.StatusBadGateway,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backoffice: decode response: %w", err)
	}
	return nil
}
