package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_events_received_total",
		Help: "Total number of events consumed from the bus.",
	})

	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_events_processed_total",
		Help: "Total number of events fully processed by the fan-out engine.",
	})

	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_events_malformed_total",
		Help: "Total number of events dropped for missing required fields.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_events_dropped_total",
		Help: "Total number of events rejected due to a full intake queue.",
	})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyhub_notifications_created_total",
		Help: "Total number of notifications persisted, labelled by event type.",
	}, []string{"event_type"})

	DeliveryMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_delivery_misses_total",
		Help: "Total number of per-recipient persistence failures after retry.",
	})

	PushesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_pushes_sent_total",
		Help: "Total number of live-push messages published.",
	})

	PushesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifyhub_pushes_failed_total",
		Help: "Total number of live-push publish failures (best effort, not retried).",
	})

	FanoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notifyhub_fanout_duration_ms",
		Help:    "End-to-end per-event fan-out latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notifyhub_queue_utilization_ratio",
		Help: "Current event intake queue utilization (0–1).",
	})
)
