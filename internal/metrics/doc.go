// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

/*
Package metrics provides Prometheus metrics for the drops pipeline.

All collectors are registered on the default registry through promauto and are
prefixed with dropscout_. They cover:
  - poll and digest cycle outcomes, durations and skipped ticks
  - catalog fetch latency, failure class and dropped malformed records
  - snapshot size and diff classification counts
  - obligations resolved and suppressed by reason
  - dispatch state transitions, drops, send latency and admission waits
  - circuit breaker state for the upstream client
  - NATS event publishing and admin API latency

# Metrics Endpoint

When the admin API is enabled the registry is exposed at /metrics:

	curl http://127.0.0.1:8089/metrics

# Usage

Components record through the helper functions where one exists:

	start := time.Now()
	snap, err := fetcher.Fetch(ctx)
	metrics.RecordFetch(time.Since(start), class, snap.Dropped())

and through the collector vars directly otherwise:

	metrics.DispatchTransitions.WithLabelValues("delivered").Inc()
*/
package metrics
