// Package metrics declares the Prometheus instruments shared across the
// application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery metrics
var (
	// DeliveryAttemptsTotal tracks fan-out delivery attempts by outcome
	// (delivered, gone, transient).
	DeliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Fan-out delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	// BroadcastsTotal tracks completed broadcast batches.
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total broadcast batches processed",
		},
	)

	// BroadcastDuration tracks the duration of one full fan-out in seconds.
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Duration of a full broadcast fan-out in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// StaleConnectionsRemoved tracks registry removals triggered by a
	// gone-signal during delivery.
	StaleConnectionsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_connections_removed_total",
			Help: "Connections removed from the registry after a gone-signal",
		},
	)
)

// Connection metrics
var (
	// ConnectedClients tracks WebSocket clients attached to this instance.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Number of WebSocket clients connected to this instance",
		},
	)

	// ConnectionsRejected tracks connections rejected by the limiters.
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "WebSocket connections rejected by limiter",
		},
		[]string{"reason"},
	)
)

// Message metrics
var (
	// MessagesCreatedTotal tracks successfully persisted messages.
	MessagesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_created_total",
			Help: "Total messages persisted",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks Redis operations by command and status.
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by command and status",
		},
		[]string{"command", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds.
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"command"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions.
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
