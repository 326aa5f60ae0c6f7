package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cipherroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cipherroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cipherroom_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"kind"},
	)

	MessagesEdited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cipherroom_messages_edited_total",
			Help: "Total messages edited",
		},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cipherroom_messages_deleted_total",
			Help: "Total messages deleted",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cipherroom_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	// DecryptFailures counts records whose ciphertext no longer
	// authenticates. Non-zero values indicate tampering or key mismatch.
	DecryptFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cipherroom_decrypt_failures_total",
			Help: "Total message decryption failures on read",
		},
	)

	// Fan-out metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cipherroom_sessions_active",
			Help: "Currently registered live sessions",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cipherroom_events_delivered_total",
			Help: "Total events delivered to sessions",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cipherroom_events_dropped_total",
			Help: "Events dropped because a session sink could not accept them",
		},
	)

	TypingEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cipherroom_typing_events_total",
			Help: "Total typing signals processed",
		},
	)
)
