// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	cycleKindKey     contextKey = "cycle"
	loggerKey        contextKey = "logger"
)

// GenerateCorrelationID returns the first 8 characters of a random UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a context carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a context with a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithCycle tags ctx with a cycle kind (poll, digest) and a new
// correlation ID. Every Ctx(ctx) log line within the cycle carries both.
func ContextWithCycle(ctx context.Context, kind string) context.Context {
	ctx = context.WithValue(ctx, cycleKindKey, kind)
	return ContextWithNewCorrelationID(ctx)
}

// CycleFromContext returns the cycle kind, or "".
func CycleFromContext(ctx context.Context) string {
	if kind, ok := ctx.Value(cycleKindKey).(string); ok {
		return kind
	}
	return ""
}

// ContextWithLogger stores a logger in ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the stored logger or the global one.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger with the context's cycle and correlation fields.
//
//	logging.Ctx(ctx).Info().Int("appeared", n).Msg("Diff computed")
//	// {"level":"info","cycle":"poll","correlation_id":"1f2e3d4c","appeared":2,...}
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := LoggerFromContext(ctx).With()
	if kind := CycleFromContext(ctx); kind != "" {
		logCtx = logCtx.Str("cycle", kind)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child of the global logger tagged with component.
//
//	logger := logging.WithComponent("dispatch")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
