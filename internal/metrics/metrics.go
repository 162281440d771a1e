package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirethread_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wirethread_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Messages
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirethread_messages_created_total",
			Help: "Total messages created",
		},
		[]string{"kind"}, // "root" or "reply"
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirethread_messages_marked_read_total",
			Help: "Total messages marked as read",
		},
	)

	MessageEdits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirethread_message_edits_total",
			Help: "Message updates by outcome",
		},
		[]string{"outcome"}, // "recorded" or "unchanged"
	)

	// Threads
	ThreadSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wirethread_thread_size_messages",
			Help:    "Number of messages in built threads",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	ThreadBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wirethread_thread_build_duration_seconds",
			Help:    "Time to load and assemble a thread",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// Notifications
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirethread_notifications_dispatched_total",
			Help: "Notification dispatch attempts by result",
		},
		[]string{"result"}, // "created", "failed"
	)

	PushDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirethread_push_dropped_total",
			Help: "Events not queued for websocket delivery",
		},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirethread_websocket_clients",
			Help: "Currently connected websocket sessions",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirethread_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"route"},
	)
)
