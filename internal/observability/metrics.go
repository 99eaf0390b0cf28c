package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Translation outcomes.
const (
	OutcomeTranslated = "translated"
	OutcomeCancelled  = "cancelled"
	OutcomeFailed     = "failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	packets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backwire",
			Subsystem: "pipeline",
			Name:      "packets_total",
			Help:      "Packets run through a version pair, by outcome.",
		},
		[]string{"pair", "direction", "outcome"},
	)
	translateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backwire",
			Subsystem: "pipeline",
			Name:      "translate_duration_seconds",
			Help:      "Time to translate one packet through one version pair.",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 1e-2},
		},
		[]string{"pair", "direction"},
	)
	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "backwire",
			Subsystem: "proxy",
			Name:      "connections_active",
			Help:      "Proxied connections currently open.",
		},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backwire",
			Subsystem: "proxy",
			Name:      "frames_total",
			Help:      "Frames read from either side of a proxied connection.",
		},
		[]string{"direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, packets, translateDuration, connections, frames)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTranslation(pair, direction, outcome string, duration time.Duration) {
	RegisterMetrics()
	packets.WithLabelValues(pair, direction, outcome).Inc()
	translateDuration.WithLabelValues(pair, direction).Observe(duration.Seconds())
}

func RecordFrame(direction string) {
	RegisterMetrics()
	frames.WithLabelValues(direction).Inc()
}

func ConnectionOpened() {
	RegisterMetrics()
	connections.Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	connections.Dec()
}
