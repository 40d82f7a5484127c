// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
)

const breakerName = "twitch-gql"

// newBreaker builds the circuit breaker shared by every upstream call.
//
// Only transient failures count against the circuit. Fatal answers (auth
// rejected, schema drift) prove the upstream is reachable and are recorded as
// successes so they never trip it.
func newBreaker(cfg Config) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.BreakerFailures
			if trip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening upstream circuit")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !models.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
}

// execute runs fn inside the breaker. A rejected call surfaces as a
// TransientError so the caller simply waits for the next cycle.
func (c *Client) execute(op string, fn func() ([]byte, error)) ([]byte, error) {
	body, err := c.breaker.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return nil, models.NewTransient(op, err)
	case models.IsTransient(err):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		return nil, err
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		return nil, err
	}
}

// BreakerState reports the current circuit state as a string.
func (c *Client) BreakerState() string {
	return stateToString(c.breaker.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
