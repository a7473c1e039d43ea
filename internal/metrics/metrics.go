// Package metrics defines the Prometheus collectors for the session
// orchestrator. Collectors are registered via promauto at package init and
// exposed on the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session lifecycle metrics
var (
	// ActiveSessions tracks the number of live sessions in the registry.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Number of active dashboard sessions",
		},
	)

	// StagedHandshakes tracks pending-initialization records awaiting a
	// dashboard connection.
	StagedHandshakes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_staged_handshakes",
			Help: "Pending-initialization records not yet consumed",
		},
	)

	// SessionTeardowns counts completed teardown sequences.
	SessionTeardowns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_session_teardowns_total",
			Help: "Completed session teardown sequences",
		},
	)

	// SubscriptionRevocationFailures counts EventSub revocations that still
	// failed after bounded retry and were dropped from tracking.
	SubscriptionRevocationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_subscription_revocation_failures_total",
			Help: "EventSub subscription revocations dropped after retries",
		},
	)
)

// Event routing metrics
var (
	// EventsDispatched counts routed upstream notifications by subscription type.
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_dispatched_total",
			Help: "Upstream notifications dispatched by subscription type",
		},
		[]string{"type"},
	)

	// ForwardPublishFailures counts failed downstream publishes by record kind.
	ForwardPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_forward_publish_failures_total",
			Help: "Failed downstream publishes by record kind",
		},
		[]string{"record"},
	)

	// PermissionDecisions counts permission gate outcomes.
	PermissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_permission_decisions_total",
			Help: "Permission gate outcomes (granted/denied)",
		},
		[]string{"outcome"},
	)
)
