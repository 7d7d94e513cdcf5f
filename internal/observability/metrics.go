package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "launchpad_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RealtimeConnections is the gauge of open realtime WebSocket connections.
	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_realtime_connections",
		Help: "Number of open realtime WebSocket connections",
	})

	// RealtimeSubscriptions is the gauge of active table-change subscriptions.
	RealtimeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_realtime_subscriptions",
		Help: "Number of active realtime subscriptions across all connections",
	})

	// RealtimeEventsTotal counts change events fanned out by table and event.
	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_realtime_events_total",
		Help: "Total realtime change events delivered to subscribers",
	}, []string{"table", "event"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ContactEmailsTotal counts contact form deliveries by outcome.
	ContactEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_contact_emails_total",
		Help: "Contact form email deliveries by status",
	}, []string{"status"})

	// ImageJobsTotal counts variant generation jobs by outcome.
	ImageJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_image_jobs_total",
		Help: "Image variant jobs processed by result",
	}, []string{"result"})
)

// TrackQuery starts a repository span and returns a function that ends it and
// records query latency (e.g. defer).
func TrackQuery(ctx context.Context, operation, table string) func() {
	start := time.Now()
	_, span := GetTraceLayer().TraceRepositoryMethod(ctx, operation, table)
	return func() {
		span.End()
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
