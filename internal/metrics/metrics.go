// Package metrics exposes Prometheus collectors for the docbridge service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	toolCallsTotal             *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	progressStreams            prometheus.Gauge
	notificationsDroppedTotal  prometheus.Counter
	rateLimitedTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; the observe helpers call it
// on first use.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbridge_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docbridge_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		toolCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbridge_tool_calls_total",
				Help: "Total tool invocations, labeled by tool and result kind.",
			},
			[]string{"tool", "result"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docbridge_active_workers",
				Help: "Number of workers currently running a conversion.",
			},
		)

		progressStreams = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docbridge_progress_streams",
				Help: "Number of open server-sent progress streams.",
			},
		)

		notificationsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docbridge_progress_notifications_dropped_total",
				Help: "Progress notifications dropped because the receiver was gone or slow.",
			},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbridge_rate_limited_total",
				Help: "Tool calls rejected by admission control, labeled by route.",
			},
			[]string{"route"},
		)
	})
}

// SanitizeRoute turns a chi route pattern into a bounded label value.
func SanitizeRoute(pattern string) string {
	pattern = strings.TrimSuffix(strings.TrimSpace(pattern), "/*")
	if pattern == "" {
		return "unknown"
	}
	return pattern
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, SanitizeRoute(route)).Observe(duration.Seconds())
}

// ObserveToolCall counts one tool invocation. result is "success" or the
// failure kind.
func ObserveToolCall(tool, result string) {
	Init()
	toolCallsTotal.WithLabelValues(tool, result).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// IncProgressStreams increments the open progress stream gauge.
func IncProgressStreams() {
	Init()
	progressStreams.Inc()
}

// DecProgressStreams decrements the open progress stream gauge.
func DecProgressStreams() {
	Init()
	progressStreams.Dec()
}

// AddDroppedNotifications records notifications a mailbox discarded.
func AddDroppedNotifications(n int64) {
	if n <= 0 {
		return
	}
	Init()
	notificationsDroppedTotal.Add(float64(n))
}

// ObserveRateLimited counts a rejected tool call.
func ObserveRateLimited(route string) {
	Init()
	rateLimitedTotal.WithLabelValues(SanitizeRoute(route)).Inc()
}
