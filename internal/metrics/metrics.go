// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the poll, resolve and dispatch pipeline.

var (
	// Poll Cycle Metrics
	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropscout_poll_cycle_duration_seconds",
			Help:    "Duration of a full poll cycle (fetch, diff, resolve, dispatch)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_poll_cycles_total",
			Help: "Total number of poll cycles by result",
		},
		[]string{"result"}, // "success", "error", "primed"
	)

	DigestCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_digest_cycles_total",
			Help: "Total number of weekly digest cycles by result",
		},
		[]string{"result"},
	)

	CycleSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_cycle_skipped_total",
			Help: "Ticks skipped because the previous cycle of the same kind was still running",
		},
		[]string{"kind"}, // "poll", "digest"
	)

	// Fetch Metrics
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropscout_fetch_duration_seconds",
			Help:    "Duration of catalog fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_fetch_errors_total",
			Help: "Total number of catalog fetch failures by class",
		},
		[]string{"class"}, // "transient", "fatal"
	)

	FetchDroppedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropscout_fetch_dropped_records_total",
			Help: "Total number of malformed upstream records dropped during normalization",
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_upstream_requests_total",
			Help: "Total number of upstream HTTP requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// Snapshot / Diff Metrics
	SnapshotCampaigns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dropscout_snapshot_campaigns",
			Help: "Number of campaigns in the current snapshot by status",
		},
		[]string{"status"},
	)

	SnapshotPersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropscout_snapshot_persist_errors_total",
			Help: "Total number of failed snapshot persists (in-memory swap still applied)",
		},
	)

	DiffCampaigns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_diff_campaigns_total",
			Help: "Campaigns classified by the diff engine",
		},
		[]string{"change"}, // "appeared", "disappeared", "modified"
	)

	// Resolve Metrics
	ObligationsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_obligations_resolved_total",
			Help: "Notification obligations produced by the resolver by reason",
		},
		[]string{"reason"},
	)

	ObligationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_obligations_suppressed_total",
			Help: "Obligations skipped because the same key was dispatched recently",
		},
		[]string{"reason"},
	)

	SuppressionLedger = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dropscout_suppression_ledger",
			Help: "Suppression ledger state (size, hits, misses, swept)",
		},
		[]string{"stat"},
	)

	// Dispatch Metrics
	DispatchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_dispatch_transitions_total",
			Help: "Dispatch state machine transitions by target state",
		},
		[]string{"state"},
	)

	DispatchDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_dispatch_dropped_total",
			Help: "Obligations dropped after a fatal error, exhausted retries or cancellation",
		},
		[]string{"reason"}, // "fatal", "exhausted", "canceled"
	)

	DispatchSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropscout_dispatch_send_duration_seconds",
			Help:    "Duration of individual transport sends",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "success", "transient", "fatal"
	)

	DispatchGateWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropscout_dispatch_gate_wait_seconds",
			Help:    "Time spent waiting for admission before a send",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dropscout_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropscout_events_published_total",
			Help: "Domain events published to NATS by subject suffix and result",
		},
		[]string{"event", "result"},
	)

	// Admin API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropscout_api_request_duration_seconds",
			Help:    "Duration of admin API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)
)

// RecordPollCycle records one finished poll cycle.
func RecordPollCycle(duration time.Duration, result string) {
	PollCycleDuration.Observe(duration.Seconds())
	PollCyclesTotal.WithLabelValues(result).Inc()
}

// RecordFetch records a catalog fetch. class is empty on success.
func RecordFetch(duration time.Duration, class string, dropped int) {
	FetchDuration.Observe(duration.Seconds())
	if class != "" {
		FetchErrors.WithLabelValues(class).Inc()
	}
	if dropped > 0 {
		FetchDroppedRecords.Add(float64(dropped))
	}
}

// RecordUpstreamRequest counts an upstream HTTP exchange. A zero status means
// the request never produced a response.
func RecordUpstreamRequest(operation string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(operation, label).Inc()
}

// SetSnapshotCampaigns replaces the per-status campaign gauge.
func SetSnapshotCampaigns(byStatus map[string]int) {
	SnapshotCampaigns.Reset()
	for status, n := range byStatus {
		SnapshotCampaigns.WithLabelValues(status).Set(float64(n))
	}
}

// SetSuppressionLedger publishes the ledger's size, lookup counts and the
// number of entries removed by the last sweep.
func SetSuppressionLedger(hits, misses int64, size, swept int) {
	SuppressionLedger.WithLabelValues("size").Set(float64(size))
	SuppressionLedger.WithLabelValues("hits").Set(float64(hits))
	SuppressionLedger.WithLabelValues("misses").Set(float64(misses))
	SuppressionLedger.WithLabelValues("swept").Set(float64(swept))
}

// RecordDiff adds the sizes of one delta.
func RecordDiff(appeared, disappeared, modified int) {
	DiffCampaigns.WithLabelValues("appeared").Add(float64(appeared))
	DiffCampaigns.WithLabelValues("disappeared").Add(float64(disappeared))
	DiffCampaigns.WithLabelValues("modified").Add(float64(modified))
}

// RecordSend observes one transport send.
func RecordSend(duration time.Duration, outcome string) {
	DispatchSendDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordAPIRequest records an admin API request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}
