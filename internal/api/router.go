// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package api is the optional read-only admin query surface.
//
// Routes:
//
//	GET /healthz              snapshot freshness
//	GET /metrics              Prometheus exposition
//	GET /api/v1/search?q=     fuzzy game search
//	GET /api/v1/active        active campaigns in the current snapshot
//	GET /api/v1/this-week     active campaigns ending before the next digest cutoff
//
// The API is disabled by default and binds to loopback when enabled.
// Every route is rate limited per client IP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/dropscout/internal/engine"
	"github.com/tomtom215/dropscout/internal/middleware"
	"github.com/tomtom215/dropscout/internal/models"
)

// Engine is the query side of engine.Engine.
type Engine interface {
	Search(ctx context.Context, query string) (engine.SearchResult, error)
	ActiveSnapshot() *models.Snapshot
	ThisWeek(ctx context.Context) ([]models.Campaign, error)
	UpstreamState() string
}

// Config holds admin API settings.
type Config struct {
	// RateLimitRequests per RateLimitWindow per client IP (default: 60)
	RateLimitRequests int
	// RateLimitWindow (default: 1 minute)
	RateLimitWindow time.Duration
	// StaleAfter marks /healthz degraded when the snapshot is older (default: 2h)
	StaleAfter time.Duration
}

// DefaultConfig returns the default admin API configuration.
func DefaultConfig() Config {
	return Config{
		RateLimitRequests: 60,
		RateLimitWindow:   time.Minute,
		StaleAfter:        2 * time.Hour,
	}
}

// Handler serves the admin routes.
type Handler struct {
	engine Engine
	cfg    Config
	now    func() time.Time
}

// NewRouter returns the admin API handler.
func NewRouter(eng Engine, cfg Config) http.Handler {
	def := DefaultConfig()
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = def.RateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	h := &Handler{engine: eng, cfg: cfg, now: time.Now}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(httprate.Limit(
		h.cfg.RateLimitRequests,
		h.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
		}),
	))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/active", h.Active)
		r.Get("/this-week", h.ThisWeek)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such route", nil)
	})
	return r
}
