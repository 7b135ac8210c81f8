// Package metrics provides Prometheus instrumentation for the paper engine.
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
	// TradesTotal counts paper fills, partitioned by side and whether they
	// came from a backtest.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trades_total",
		Help: "Total number of paper trades executed",
	}, []string{"side", "simulated"})

	// TradeRejections counts rejected buy/sell requests by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trade_rejections_total",
		Help: "Trades rejected before any state change",
	}, []string{"side", "reason"})

	// SimulationsTotal counts finished backtests by final state.
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_simulations_total",
		Help: "Backtest runs by final state",
	}, []string{"state"})

	// SimulationDuration tracks wall-clock backtest duration.
	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paper_simulation_duration_seconds",
		Help:    "Backtest wall-clock duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// OpenLots tracks open lots across all live accounts.
	OpenLots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_open_lots",
		Help: "Number of open buy lots across live accounts",
	})

	// MarketDataRequests counts market-data lookups by source and outcome.
	MarketDataRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_marketdata_requests_total",
		Help: "Market data lookups",
	}, []string{"source", "outcome"})

	// MarketDataLatency tracks market-data lookup latency by source.
	MarketDataLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paper_marketdata_latency_seconds",
		Help:    "Market data lookup latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paper_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// ObserveMarketData records one market-data lookup.
func ObserveMarketData(source string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	MarketDataRequests.WithLabelValues(source, outcome).Inc()
	MarketDataLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

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

		// Route pattern keeps account and symbol ids out of the label set.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
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

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
