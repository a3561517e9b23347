// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts settled trades, partitioned by side and account kind.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsim_trades_total",
		Help: "Total number of trades settled",
	}, []string{"side", "account"})

	// TradeLatency tracks settlement latency, including the store transaction.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsim_trade_latency_seconds",
		Help:    "Trade settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeRejections counts trades refused by validation, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsim_trade_rejections_total",
		Help: "Trades rejected by business-rule validation",
	}, []string{"reason"})

	InvestmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsim_investments_total",
		Help: "Total number of company investments settled",
	})

	BetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsim_bets_total",
		Help: "Total number of prediction-market bets placed",
	})

	// ActiveMarkets tracks the number of open prediction markets.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finsim_active_markets",
		Help: "Number of currently open prediction markets",
	})

	// ImpactApplied counts asset price updates caused by trades.
	ImpactApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsim_price_impact_applied_total",
		Help: "Trade-driven price updates applied",
	})

	// ImpactFailures counts price updates that failed after the trade committed.
	ImpactFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsim_price_impact_failures_total",
		Help: "Trade-driven price updates that failed",
	})

	// ImpactDropped counts impact jobs dropped because the queue was full or closed.
	ImpactDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsim_price_impact_dropped_total",
		Help: "Trade-driven price updates dropped before running",
	})

	// SimulationTicks counts periodic random-walk price ticks by outcome.
	SimulationTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsim_simulation_ticks_total",
		Help: "Periodic simulation ticks",
	}, []string{"result"})

	// ContentFallbacks counts generative-content calls served by the static fallback.
	ContentFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsim_content_fallbacks_total",
		Help: "Generative content requests answered with the static fallback",
	}, []string{"kind"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finsim_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsim_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsim_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade see through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
