// Package metrics provides Prometheus instrumentation for the yield exchange.
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
	// PurchasesTotal counts purchase attempts, partitioned by outcome.
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropchain_purchases_total",
		Help: "Total number of purchase attempts by outcome",
	}, []string{"outcome"})

	// PurchaseLatency tracks end-to-end purchase latency, settlement included.
	PurchaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cropchain_purchase_latency_seconds",
		Help:    "Purchase latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// UnitsPurchased tracks cumulative units sold per token.
	UnitsPurchased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropchain_units_purchased_total",
		Help: "Cumulative token units purchased",
	}, []string{"token_id"})

	// TokensCreated counts tokens issued through the API.
	TokensCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cropchain_tokens_created_total",
		Help: "Tokens issued by farmers",
	})

	// ListedTokens tracks the size of the catalog at the last successful fetch.
	ListedTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cropchain_listed_tokens",
		Help: "Number of tokens in the catalog",
	})

	// CatalogQueries counts catalog queries by sort key.
	CatalogQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropchain_catalog_queries_total",
		Help: "Catalog queries by sort key",
	}, []string{"sort_by"})

	// CatalogFallbacks counts catalog fetches served from the last-known snapshot.
	CatalogFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cropchain_catalog_fallbacks_total",
		Help: "Catalog fetch failures answered with a stale snapshot",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cropchain_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropchain_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cropchain_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
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

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern returns the matched chi route ("/api/v1/tokens/{tokenID}")
// so ids do not become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
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

// Hijack lets the WebSocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
