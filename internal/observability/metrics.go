package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	geminiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gemctl",
			Subsystem: "gemini",
			Name:      "requests_total",
			Help:      "Total Gemini requests by result kind and status code.",
		},
		[]string{"host", "result", "status"},
	)
	geminiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gemctl",
			Subsystem: "gemini",
			Name:      "request_duration_seconds",
			Help:      "Gemini request duration in seconds, dial to stream close.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"host", "result"},
	)
	navigations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gemctl",
			Subsystem: "navigator",
			Name:      "outcomes_total",
			Help:      "Settled navigations by outcome.",
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gemctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total gateway HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gemctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(geminiRequests, geminiDuration, navigations, httpRequests, httpDuration)
	})
}

// RecordGeminiRequest counts one settled session. code is 0 when no status
// line was read.
func RecordGeminiRequest(host, result string, code int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := "none"
	if code > 0 {
		statusLabel = strconv.Itoa(code)
	}
	geminiRequests.WithLabelValues(host, result, statusLabel).Inc()
	geminiDuration.WithLabelValues(host, result).Observe(duration.Seconds())
}

// RecordNavigation counts one settled controller command.
func RecordNavigation(outcome string) {
	RegisterMetrics()
	navigations.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
