// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package delivery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/cache"
	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
)

// State is a dispatch state of one obligation.
type State string

// Dispatch states.
const (
	StatePending   State = "pending"
	StateSending   State = "sending"
	StateRetrying  State = "retrying"
	StateDelivered State = "delivered"
	StateDropped   State = "dropped"
)

// Drop reasons.
const (
	DropFatal     = "fatal"
	DropExhausted = "exhausted"
	DropCanceled  = "canceled"
)

// RetryEvent records one retry decision.
type RetryEvent struct {
	Attempt int
	Err     error
	Delay   time.Duration
}

// Result is the outcome of one obligation.
type Result struct {
	Obligation  models.Obligation
	State       State
	Transitions []State
	Retries     []RetryEvent
	Attempts    int
	// DropReason is one of the Drop* constants when State is StateDropped.
	DropReason string
	Err        error
}

// Report aggregates one Dispatch call.
type Report struct {
	Results []Result
	// Suppressed lists obligations skipped because the same key was
	// delivered recently or appeared twice in the batch.
	Suppressed  []models.ObligationKey
	StartedAt   time.Time
	CompletedAt time.Time
}

// Delivered counts delivered obligations.
func (r *Report) Delivered() int {
	return r.count(StateDelivered)
}

// Dropped counts dropped obligations.
func (r *Report) Dropped() int {
	return r.count(StateDropped)
}

func (r *Report) count(s State) int {
	n := 0
	for i := range r.Results {
		if r.Results[i].State == s {
			n++
		}
	}
	return n
}

// Find returns the result for key.
func (r *Report) Find(key models.ObligationKey) (Result, bool) {
	for _, res := range r.Results {
		if res.Obligation.Key() == key {
			return res, true
		}
	}
	return Result{}, false
}

// Config configures the Manager.
type Config struct {
	// MaxRetries bounds retries of transient failures per obligation.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// SendTimeout bounds one transport call. Sends are not interrupted by
	// cancellation of the dispatch context.
	SendTimeout time.Duration

	Gate GateConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		SendTimeout: 15 * time.Second,
		Gate: GateConfig{
			Parallelism:       4,
			GlobalRate:        40,
			GlobalBurst:       10,
			DomainConcurrency: 1,
			DomainRate:        1,
			DomainBurst:       5,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	c.Gate = c.Gate.withDefaults()
	return c
}

// Manager dispatches obligations.
type Manager struct {
	sender   Sender
	renderer Renderer
	gate     *Gate
	ledger   *cache.Ledger
	cfg      Config
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	onDrop   func(ctx context.Context, r Result)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLedger enables cross-cycle duplicate suppression.
func WithLedger(l *cache.Ledger) Option {
	return func(m *Manager) { m.ledger = l }
}

// WithDropHook registers a callback invoked for every dropped obligation.
func WithDropHook(fn func(ctx context.Context, r Result)) Option {
	return func(m *Manager) { m.onDrop = fn }
}

// withSleep replaces the backoff wait (tests).
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = fn }
}

// NewManager creates a dispatch manager.
func NewManager(sender Sender, renderer Renderer, logger *zerolog.Logger, cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	if renderer == nil {
		renderer = NewEmbedRenderer()
	}
	m := &Manager{
		sender:   sender,
		renderer: renderer,
		gate:     NewGate(cfg.Gate),
		cfg:      cfg,
		logger:   logger.With().Str("component", "dispatch").Logger(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type group struct {
	dest        models.Destination
	obligations []models.Obligation
}

// Dispatch delivers obligations and reports the fate of each.
//
// Obligations are grouped by destination; a group is sent sequentially in
// campaign ID order while groups proceed in parallel. Failures never cross
// group boundaries. Cancelling ctx stops backoff and admission waits, lets
// in-flight sends finish and marks everything unsent as dropped.
func (m *Manager) Dispatch(ctx context.Context, obligations []models.Obligation) *Report {
	report := &Report{StartedAt: time.Now()}
	log := m.log(ctx)

	groups, suppressed := m.plan(obligations)
	report.Suppressed = suppressed

	results := make(chan Result, len(obligations))
	jobs := make(chan group, len(groups))
	var wg sync.WaitGroup

	workers := min(m.cfg.Gate.Parallelism, len(groups))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range jobs {
				for _, o := range g.obligations {
					results <- m.deliver(ctx, o)
				}
			}
		}()
	}
	for _, g := range groups {
		jobs <- g
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		report.Results = append(report.Results, r)
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Obligation.Less(report.Results[j].Obligation)
	})
	report.CompletedAt = time.Now()
	m.sweepLedger()

	if len(obligations) > 0 {
		log.Info().
			Int("obligations", len(obligations)).
			Int("delivered", report.Delivered()).
			Int("dropped", report.Dropped()).
			Int("suppressed", len(report.Suppressed)).
			Dur("duration", report.CompletedAt.Sub(report.StartedAt)).
			Msg("Dispatch complete")
	}
	return report
}

// ledgered reports whether o takes part in cross-cycle suppression. Weekly
// digests are exempt: their keys carry no campaign, and the scheduler
// already fires them once per cutoff.
func (m *Manager) ledgered(o models.Obligation) bool {
	return m.ledger != nil && o.Reason != models.ReasonWeeklyDigest
}

// sweepLedger drops expired suppression entries and publishes ledger stats.
func (m *Manager) sweepLedger() {
	if m.ledger == nil {
		return
	}
	swept := m.ledger.Sweep()
	hits, misses, size := m.ledger.Stats()
	metrics.SetSuppressionLedger(hits, misses, size, swept)
	if swept > 0 {
		m.logger.Debug().Int("swept", swept).Int("size", size).Msg("Suppression ledger swept")
	}
}

// plan drops duplicates and recently delivered keys, then groups by
// destination in a stable order.
func (m *Manager) plan(obligations []models.Obligation) ([]group, []models.ObligationKey) {
	var suppressed []models.ObligationKey
	seen := make(map[models.ObligationKey]struct{}, len(obligations))
	byDest := make(map[models.Destination][]models.Obligation)

	for _, o := range obligations {
		key := o.Key()
		if _, dup := seen[key]; dup {
			suppressed = append(suppressed, key)
			metrics.ObligationsSuppressed.WithLabelValues(string(o.Reason)).Inc()
			continue
		}
		seen[key] = struct{}{}
		if m.ledgered(o) {
			if at, ok := m.ledger.Seen(key.String()); ok {
				suppressed = append(suppressed, key)
				metrics.ObligationsSuppressed.WithLabelValues(string(o.Reason)).Inc()
				m.logger.Debug().Str("key", key.String()).Time("delivered_at", at).Msg("Suppressed recently delivered obligation")
				continue
			}
		}
		byDest[o.Destination] = append(byDest[o.Destination], o)
	}

	groups := make([]group, 0, len(byDest))
	for dest, obs := range byDest {
		sort.Slice(obs, func(i, j int) bool { return obs[i].Less(obs[j]) })
		groups = append(groups, group{dest: dest, obligations: obs})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].dest.GuildID != groups[j].dest.GuildID {
			return groups[i].dest.GuildID < groups[j].dest.GuildID
		}
		return groups[i].dest.ChannelID < groups[j].dest.ChannelID
	})
	return groups, suppressed
}

// deliver runs one obligation through the state machine.
func (m *Manager) deliver(ctx context.Context, o models.Obligation) Result {
	res := Result{Obligation: o}
	m.transition(&res, StatePending)

	if err := ctx.Err(); err != nil {
		return m.drop(ctx, res, DropCanceled, err)
	}

	content, err := m.renderer.Render(o)
	if err != nil {
		return m.drop(ctx, res, DropFatal, err)
	}

	for attempt := 1; ; attempt++ {
		release, err := m.gate.Acquire(ctx, o.Destination.GuildID)
		if err != nil {
			return m.drop(ctx, res, DropCanceled, err)
		}

		m.transition(&res, StateSending)
		res.Attempts = attempt
		err = m.send(ctx, o.Destination, content)
		release()

		switch {
		case err == nil:
			m.transition(&res, StateDelivered)
			if m.ledgered(o) {
				m.ledger.Record(o.Key().String())
			}
			return res

		case !models.IsTransient(err):
			return m.drop(ctx, res, DropFatal, err)

		case attempt > m.cfg.MaxRetries:
			return m.drop(ctx, res, DropExhausted, err)
		}

		delay := m.backoff(attempt, err)
		res.Retries = append(res.Retries, RetryEvent{Attempt: attempt, Err: err, Delay: delay})
		m.transition(&res, StateRetrying)
		m.log(ctx).Debug().
			Str("key", o.Key().String()).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Transient send failure, retrying")

		if err := m.sleep(ctx, delay); err != nil {
			return m.drop(ctx, res, DropCanceled, err)
		}
	}
}

// send performs one transport call that survives dispatch cancellation.
func (m *Manager) send(ctx context.Context, dest models.Destination, content *Content) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	err := m.sender.Send(sendCtx, dest, content)
	outcome := "success"
	switch {
	case err == nil:
	case models.IsTransient(err):
		outcome = "transient"
	default:
		outcome = "fatal"
	}
	metrics.RecordSend(time.Since(start), outcome)

	if err != nil && !models.IsTransient(err) && !models.IsFatal(err) {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.NewTransient("send", err)
		}
		return models.NewFatal("send", err)
	}
	return err
}

// backoff returns the wait before retry n: base*2^(n-1) capped at MaxDelay,
// unless the transport asked for a specific delay.
func (m *Manager) backoff(attempt int, err error) time.Duration {
	if d, ok := models.RetryAfterOf(err); ok {
		return d
	}
	delay := m.cfg.BaseDelay << uint(attempt-1)
	if delay > m.cfg.MaxDelay || delay <= 0 {
		delay = m.cfg.MaxDelay
	}
	return delay
}

func (m *Manager) transition(res *Result, s State) {
	res.State = s
	res.Transitions = append(res.Transitions, s)
	metrics.DispatchTransitions.WithLabelValues(string(s)).Inc()
}

func (m *Manager) drop(ctx context.Context, res Result, reason string, err error) Result {
	m.transition(&res, StateDropped)
	res.DropReason = reason
	res.Err = err
	metrics.DispatchDropped.WithLabelValues(reason).Inc()

	m.log(ctx).Error().
		Err(err).
		Str("key", res.Obligation.Key().String()).
		Str("guild_id", res.Obligation.Destination.GuildID).
		Str("channel_id", res.Obligation.Destination.ChannelID).
		Str("campaign_id", res.Obligation.CampaignID).
		Str("reason", string(res.Obligation.Reason)).
		Str("drop_reason", reason).
		Int("attempts", res.Attempts).
		Msg("Obligation dropped")

	if m.onDrop != nil {
		m.onDrop(context.WithoutCancel(ctx), res)
	}
	return res
}

// log returns the component logger annotated with the cycle context.
func (m *Manager) log(ctx context.Context) *zerolog.Logger {
	lc := m.logger.With()
	if kind := logging.CycleFromContext(ctx); kind != "" {
		lc = lc.Str("cycle", kind)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	l := lc.Logger()
	return &l
}
