package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)

	connectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netchat",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the listener.",
		},
	)
	connectionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netchat",
			Subsystem: "server",
			Name:      "connections_closed_total",
			Help:      "Connections closed, by reason.",
		},
		[]string{"reason"},
	)
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "netchat",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Connections currently registered.",
		},
	)
	requestsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netchat",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests dispatched, by action.",
		},
		[]string{"action"},
	)
	broadcastBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netchat",
			Subsystem: "server",
			Name:      "broadcast_bytes_total",
			Help:      "Frame bytes queued to peers by broadcasts.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			connectionsAccepted,
			connectionsClosed,
			connectionsActive,
			requestsHandled,
			broadcastBytes,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordAccepted() {
	RegisterMetrics()
	connectionsAccepted.Inc()
	connectionsActive.Inc()
}

func RecordClosed(reason string) {
	RegisterMetrics()
	connectionsClosed.WithLabelValues(reason).Inc()
	connectionsActive.Dec()
}

func RecordRequest(action string) {
	RegisterMetrics()
	requestsHandled.WithLabelValues(action).Inc()
}

// RecordBroadcast counts frameLen bytes queued once per recipient.
func RecordBroadcast(frameLen, recipients int) {
	RegisterMetrics()
	broadcastBytes.Add(float64(frameLen * recipients))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
