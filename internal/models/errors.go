// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoMatch is returned by search when no game clears the score floor.
	// It is a normal outcome, not an internal failure.
	ErrNoMatch = errors.New("no matching game")

	// ErrNoSnapshot is returned when a query arrives before the first successful fetch.
	ErrNoSnapshot = errors.New("no catalog snapshot available yet")

	// ErrNoDestination is returned when a guild has neither a configured
	// channel nor a default channel to fall back to.
	ErrNoDestination = errors.New("no destination channel for guild")
)

// TransientError is a retry-eligible failure: timeouts, rate limits, 5xx.
type TransientError struct {
	Op  string
	Err error
	// RetryAfter is the server-requested delay, zero when unknown.
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: transient: %v (retry after %s)", e.Op, e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a failure that retrying cannot fix: auth rejected, schema drift.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// PartialDataError annotates an otherwise valid snapshot from which malformed
// records were dropped. It is a warning and never aborts a cycle.
type PartialDataError struct {
	Dropped int
	Total   int
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data: dropped %d of %d upstream records", e.Dropped, e.Total)
}

// NewTransient wraps err as a TransientError.
func NewTransient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// NewFatal wraps err as a FatalError.
func NewFatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsTransient reports whether err is retry-eligible.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// RetryAfterOf returns the server-requested delay carried by a TransientError.
func RetryAfterOf(err error) (time.Duration, bool) {
	var te *TransientError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter, true
	}
	return 0, false
}
