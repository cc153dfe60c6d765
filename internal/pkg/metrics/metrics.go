// Package metrics provides Prometheus metrics for the engine (RED on the RPC
// surface plus action-pipeline throughput/latency). Scrapeable at /metrics;
// dashboards and alerts can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clustermgr"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~3.8s
		},
		[]string{"method", "path"},
	)

	// ActionsClaimedTotal counts claims by action kind.
	ActionsClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_claimed_total",
			Help:      "Total number of actions claimed by this engine, by kind.",
		},
		[]string{"kind"},
	)

	// ActionsCompletedTotal counts terminal transitions by kind and status.
	ActionsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_completed_total",
			Help:      "Total number of actions driven to a terminal status, by kind and status.",
		},
		[]string{"kind", "status"},
	)

	// ActionDurationSeconds is claim-to-terminal latency by kind.
	ActionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action execution duration from claim to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 12), // 10ms to ~4m
		},
		[]string{"kind"},
	)

	// ActionsInFlight is the number of actions currently executing in this engine.
	ActionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actions_in_flight",
			Help:      "Number of actions currently executing in this engine's workers.",
		},
	)

	// LockContentionTotal counts acquisition attempts that found the target busy.
	LockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Number of lock acquisitions deferred because the target was held.",
		},
	)

	// EventStreamClientsActive is current number of WebSocket event-stream clients.
	EventStreamClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_stream_clients_active",
			Help:      "Number of active event-stream WebSocket connections.",
		},
	)
)
