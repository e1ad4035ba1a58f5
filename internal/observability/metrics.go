package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bedctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	tagMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedctl",
			Subsystem: "tag",
			Name:      "messages_total",
			Help:      "Tag protocol messages handled, by kind and response status.",
		},
		[]string{"kind", "status"},
	)
	tagDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedctl",
			Subsystem: "tag",
			Name:      "dropped_connections_total",
			Help:      "Tag connections closed without a response.",
		},
		[]string{"reason"},
	)
	tagActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bedctl",
			Subsystem: "tag",
			Name:      "active_connections",
			Help:      "Tag connections currently being handled.",
		},
	)
	sinkSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedctl",
			Subsystem: "sink",
			Name:      "submissions_total",
			Help:      "Log sink document submissions.",
		},
		[]string{"sink", "type", "success"},
	)
	sinkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bedctl",
			Subsystem: "sink",
			Name:      "submission_duration_seconds",
			Help:      "Log sink submission duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink", "type"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			tagMessages,
			tagDropped,
			tagActive,
			sinkSubmissions,
			sinkDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordTagMessage counts one answered tag frame.
func RecordTagMessage(kind, status string) {
	RegisterMetrics()
	tagMessages.WithLabelValues(kind, status).Inc()
}

// RecordTagDrop counts one connection closed without a response.
func RecordTagDrop(reason string) {
	RegisterMetrics()
	tagDropped.WithLabelValues(reason).Inc()
}

// TrackTagConnection bumps the active gauge and returns its release func.
func TrackTagConnection() func() {
	RegisterMetrics()
	tagActive.Inc()
	return tagActive.Dec
}

func RecordSinkSubmission(sink, docType string, duration time.Duration, success bool) {
	RegisterMetrics()
	sinkSubmissions.WithLabelValues(sink, docType, strconv.FormatBool(success)).Inc()
	sinkDuration.WithLabelValues(sink, docType).Observe(duration.Seconds())
}
