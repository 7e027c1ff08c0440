package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics records request rate and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metric set on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Middleware instruments every request routed through chi.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// DisplayMetrics covers the display session and checkout flow.
type DisplayMetrics struct {
	MessagesReceived *prometheus.CounterVec
	MessagesRejected *prometheus.CounterVec
	StepsCompleted   *prometheus.CounterVec
	TerminalAttempts *prometheus.CounterVec
	ReceiptsPrinted  prometheus.Counter
}

// NewDisplayMetrics registers the display metric set on reg.
func NewDisplayMetrics(reg prometheus.Registerer) *DisplayMetrics {
	factory := promauto.With(reg)
	return &DisplayMetrics{
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "display_messages_received_total",
			Help: "Channel messages accepted by the display, by type.",
		}, []string{"type"}),
		MessagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "display_messages_rejected_total",
			Help: "Channel messages dropped by the display, by reason.",
		}, []string{"reason"}),
		StepsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "display_flow_steps_completed_total",
			Help: "Checkout flow steps completed, by step.",
		}, []string{"step"}),
		TerminalAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "display_terminal_attempts_total",
			Help: "Simulated terminal attempts, by outcome.",
		}, []string{"outcome"}),
		ReceiptsPrinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "display_receipts_printed_total",
			Help: "Receipts rendered by the print worker.",
		}),
	}
}

// Handler exposes the registry for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
