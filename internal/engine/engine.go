// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package engine wires fetching, diffing, resolution and dispatch into the
// poll and digest cycles, and exposes the queries and registry commands the
// command layer calls.
//
// A poll cycle runs strictly in this order:
//
//	fetch -> registry read -> store swap (persisted) -> index rebuild -> diff -> resolve -> dispatch
//
// A failed fetch or registry read leaves the current snapshot in place and
// notifies nothing, so the next cycle sees the same appearances again.
// Resolution runs against the registry view read before the swap.
// The snapshot is persisted before any notification goes out, so a crash
// mid-dispatch never replays the same appearance after restart.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/delivery"
	"github.com/tomtom215/dropscout/internal/diff"
	"github.com/tomtom215/dropscout/internal/fuzzy"
	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/registry"
	"github.com/tomtom215/dropscout/internal/resolver"
	"github.com/tomtom215/dropscout/internal/snapshot"
)

// Fetcher produces catalog snapshots.
type Fetcher interface {
	Fetch(ctx context.Context) (*models.Snapshot, error)
}

// Dispatcher delivers obligations.
type Dispatcher interface {
	Dispatch(ctx context.Context, obligations []models.Obligation) *delivery.Report
}

// EventSink receives campaign changes after each poll.
type EventSink interface {
	CampaignsAppeared(ctx context.Context, campaigns []models.Campaign)
	CampaignsDisappeared(ctx context.Context, campaigns []models.Campaign)
}

// Config holds engine settings.
type Config struct {
	// SearchLimit caps Search alternatives plus the best match (default: 5)
	SearchLimit int
	// MinScore is the fuzzy score floor (default: fuzzy.DefaultMinScore)
	MinScore float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{SearchLimit: 5, MinScore: fuzzy.DefaultMinScore}
}

// Engine is the drops tracking facade.
type Engine struct {
	fetcher    Fetcher
	store      *snapshot.Store
	registry   registry.Registry
	resolver   *resolver.Resolver
	dispatcher Dispatcher
	events     EventSink
	index      atomic.Pointer[fuzzy.Index]
	cfg        Config
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents publishes appeared and disappeared campaigns to sink.
func WithEvents(sink EventSink) Option {
	return func(e *Engine) { e.events = sink }
}

// WithClock overrides the time source used for digest cutoffs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// New creates an engine.
func New(fetcher Fetcher, store *snapshot.Store, reg registry.Registry, dispatcher Dispatcher, logger *zerolog.Logger, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = def.MinScore
	}

	e := &Engine{
		fetcher:    fetcher,
		store:      store,
		registry:   reg,
		resolver:   resolver.New(logger),
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore loads the persisted snapshot and indexes it.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.store.Restore(ctx); err != nil {
		return err
	}
	if snap := e.store.Current(); snap != nil {
		e.index.Store(fuzzy.Build(snap, fuzzy.WithMinScore(e.cfg.MinScore)))
		metrics.SetSnapshotCampaigns(countByStatus(snap))
	}
	return nil
}

// ActiveSnapshot returns the current snapshot, or nil before the first fetch.
func (e *Engine) ActiveSnapshot() *models.Snapshot {
	return e.store.Current()
}

// Resolve computes obligations for a delta against the live registry.
func (e *Engine) Resolve(ctx context.Context, delta models.Delta) ([]models.Obligation, error) {
	return e.resolver.Resolve(ctx, delta, e.registry)
}

// UpstreamState reports the catalog circuit breaker state ("closed",
// "half-open" or "open"), or "" when the fetcher has no breaker.
func (e *Engine) UpstreamState() string {
	if b, ok := e.fetcher.(interface{ BreakerState() string }); ok {
		return b.BreakerState()
	}
	return ""
}

// ResolveDigest computes weekly digest obligations for snap.
func (e *Engine) ResolveDigest(ctx context.Context, snap *models.Snapshot, cutoff time.Time) ([]models.Obligation, error) {
	return e.resolver.ResolveDigest(ctx, snap, cutoff, e.registry)
}

// ThisWeek returns the active campaigns ending before the next digest cutoff.
func (e *Engine) ThisWeek(_ context.Context) ([]models.Campaign, error) {
	snap := e.store.Current()
	if snap == nil {
		return nil, models.ErrNoSnapshot
	}
	return resolver.EndingBy(snap, resolver.NextDigestCutoff(e.now())), nil
}

// PrimeCycle fetches and records a baseline snapshot without notifying.
func (e *Engine) PrimeCycle(ctx context.Context) error {
	start := time.Now()
	snap, err := e.fetcher.Fetch(ctx)
	if err != nil {
		metrics.RecordPollCycle(time.Since(start), "error")
		return fmt.Errorf("priming fetch: %w", err)
	}
	e.advance(ctx, snap)
	metrics.RecordPollCycle(time.Since(start), "primed")
	logging.Ctx(ctx).Info().
		Int("campaigns", snap.Len()).
		Int("active", len(snap.Active())).
		Msg("Baseline snapshot recorded")
	return nil
}

// PollCycle runs one full fetch, diff, resolve and dispatch pass.
func (e *Engine) PollCycle(ctx context.Context) error {
	start := time.Now()
	snap, err := e.fetcher.Fetch(ctx)
	if err != nil {
		metrics.RecordPollCycle(time.Since(start), "error")
		return fmt.Errorf("fetch: %w", err)
	}

	view, err := registry.LoadView(ctx, e.registry)
	if err != nil {
		metrics.RecordPollCycle(time.Since(start), "error")
		return fmt.Errorf("load registry: %w", err)
	}

	delta := e.advance(ctx, snap)
	log := logging.Ctx(ctx)
	if len(delta.Appeared) == 0 {
		metrics.RecordPollCycle(time.Since(start), "success")
		log.Info().
			Int("campaigns", snap.Len()).
			Int("disappeared", len(delta.Disappeared)).
			Msg("Poll cycle complete; nothing new")
		return nil
	}

	obligations, err := e.resolver.Resolve(context.WithoutCancel(ctx), delta, view)
	if err != nil {
		metrics.RecordPollCycle(time.Since(start), "error")
		return fmt.Errorf("resolve: %w", err)
	}
	recordResolved(obligations)

	report := e.dispatcher.Dispatch(ctx, obligations)
	metrics.RecordPollCycle(time.Since(start), "success")
	log.Info().
		Int("appeared", len(delta.Appeared)).
		Int("obligations", len(obligations)).
		Int("delivered", report.Delivered()).
		Int("dropped", report.Dropped()).
		Int("suppressed", len(report.Suppressed)).
		Dur("duration", time.Since(start)).
		Msg("Poll cycle complete")
	return nil
}

// DigestCycle dispatches the weekly digest for the current snapshot.
func (e *Engine) DigestCycle(ctx context.Context) error {
	snap := e.store.Current()
	if snap == nil {
		metrics.DigestCyclesTotal.WithLabelValues("skipped").Inc()
		return fmt.Errorf("digest: %w", models.ErrNoSnapshot)
	}

	cutoff := resolver.NextDigestCutoff(e.now())
	obligations, err := e.ResolveDigest(ctx, snap, cutoff)
	if err != nil {
		metrics.DigestCyclesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("resolve digest: %w", err)
	}
	recordResolved(obligations)

	report := e.dispatcher.Dispatch(ctx, obligations)
	metrics.DigestCyclesTotal.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Info().
		Time("cutoff", cutoff).
		Int("obligations", len(obligations)).
		Int("delivered", report.Delivered()).
		Int("dropped", report.Dropped()).
		Msg("Digest cycle complete")
	return nil
}

// advance publishes snap as current, rebuilds the index and returns the
// delta against the snapshot it replaced.
func (e *Engine) advance(ctx context.Context, snap *models.Snapshot) models.Delta {
	log := logging.Ctx(ctx)
	if w := snap.Warning(); w != nil {
		log.Warn().Err(w).Msg("Snapshot built from partial data")
	}

	previous, err := e.store.Swap(ctx, snap)
	if err != nil {
		metrics.SnapshotPersistErrors.Inc()
		log.Error().Err(err).Msg("Snapshot persist failed; continuing with in-memory swap")
	}
	e.index.Store(fuzzy.Build(snap, fuzzy.WithMinScore(e.cfg.MinScore)))
	metrics.SetSnapshotCampaigns(countByStatus(snap))

	delta := diff.Diff(previous, snap)
	metrics.RecordDiff(len(delta.Appeared), len(delta.Disappeared), len(delta.Modified))
	log.Debug().
		Int("appeared", len(delta.Appeared)).
		Int("disappeared", len(delta.Disappeared)).
		Int("modified", len(delta.Modified)).
		Bool("baseline", previous == nil).
		Msg("Diff computed")

	if e.events != nil {
		if appeared := delta.AppearedCampaigns(); len(appeared) > 0 {
			e.events.CampaignsAppeared(ctx, appeared)
		}
		if gone := lookup(previous, delta.Disappeared); len(gone) > 0 {
			e.events.CampaignsDisappeared(ctx, gone)
		}
	}
	return delta
}

func lookup(snap *models.Snapshot, ids []string) []models.Campaign {
	out := make([]models.Campaign, 0, len(ids))
	for _, id := range ids {
		if c, ok := snap.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

func countByStatus(snap *models.Snapshot) map[string]int {
	counts := map[string]int{
		string(models.StatusActive):   0,
		string(models.StatusUpcoming): 0,
		string(models.StatusEnded):    0,
	}
	for _, c := range snap.Campaigns() {
		counts[string(c.Status)]++
	}
	return counts
}

func recordResolved(obligations []models.Obligation) {
	for _, o := range obligations {
		metrics.ObligationsResolved.WithLabelValues(string(o.Reason)).Inc()
	}
}
