// Package metrics defines and registers all custom Prometheus metrics for the
// back-office session agent. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "backoffice_auth"

// ── Hydration metrics ─────────────────────────────────────────────────────────

// HydrationsTotal counts completed hydration attempts.
// Label:
//   - outcome: "authenticated", "degraded", "no_session", "user_not_found",
//     "user_inactive", "user_timeout", "error", "busy"
var HydrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hydrations_total",
		Help:      "Total number of session hydration attempts, by outcome.",
	},
	[]string{"outcome"},
)

// HydrationDuration measures a hydration from identity lookup to assembled session.
var HydrationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "hydration_duration_seconds",
		Help:      "Duration of session hydration attempts.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5, 8},
	},
)

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheLookupsTotal counts session cache reads.
// Label:
//   - result: "hit", "miss", "expired", "corrupted", "inactive"
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of session cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// CacheWriteErrorsTotal counts swallowed cache write/delete failures.
// Label:
//   - tier: "primary" or "backup"
var CacheWriteErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_write_errors_total",
		Help:      "Total number of session cache write or delete failures, by tier.",
	},
	[]string{"tier"},
)

// ── State machine metrics ─────────────────────────────────────────────────────

// StateTransitionsTotal counts published auth states.
// Label:
//   - state: "unauthenticated", "loading", "authenticated", "error"
var StateTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Total number of published authentication states.",
	},
	[]string{"state"},
)

// SafetyTimeoutsTotal counts hydrations ended by the safety timeout.
var SafetyTimeoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "safety_timeouts_total",
		Help:      "Total number of hydrations forced to a terminal state by the safety timeout.",
	},
)

// ── Permission metrics ────────────────────────────────────────────────────────

// PermissionChecksTotal counts permission checks made through the state machine.
// Label:
//   - decision: "allow" or "deny"
var PermissionChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_checks_total",
		Help:      "Total number of permission checks, by decision.",
	},
	[]string{"decision"},
)

// LastAccessTouchesTotal counts background last-access updates.
// Label:
//   - result: "ok" or "error"
var LastAccessTouchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "last_access_touches_total",
		Help:      "Total number of background last-access updates, by result.",
	},
	[]string{"result"},
)

// TouchQueueDepth tracks pending last-access updates per dispatcher worker.
// Label:
//   - worker_id: numeric worker index
var TouchQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "touch_queue_depth",
		Help:      "Current number of last-access updates pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
