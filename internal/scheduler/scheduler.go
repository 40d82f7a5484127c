// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package scheduler drives the engine's poll and weekly digest cycles.
//
// Two loops run side by side:
//   - poll: every Config.PollInterval. At start it runs either a full cycle
//     (NotifyOnBoot) or a silent priming fetch that only records a baseline.
//   - digest: at each Config.DigestSchedule cron match, evaluated in UTC.
//
// Each kind is single-flight. A tick that finds the previous cycle of the
// same kind still running is skipped and counted, never queued. A poll and
// a digest may overlap.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/metrics"
)

// Cycle kinds, used as the "cycle" log field and the skip metric label.
const (
	KindPoll   = "poll"
	KindPrime  = "prime"
	KindDigest = "digest"
)

// MinPollInterval is the shortest poll interval the scheduler will use.
const MinPollInterval = time.Minute

// Engine is the work the scheduler drives.
type Engine interface {
	PollCycle(ctx context.Context) error
	PrimeCycle(ctx context.Context) error
	DigestCycle(ctx context.Context) error
}

// Config holds scheduler settings.
type Config struct {
	// PollInterval between catalog polls (default: 30 minutes, minimum: 1 minute)
	PollInterval time.Duration

	// NotifyOnBoot runs a notifying cycle at start instead of a priming fetch
	NotifyOnBoot bool

	// DigestEnabled turns the weekly digest loop on
	DigestEnabled bool

	// DigestSchedule is a five-field cron expression (default: "0 0 * * 1")
	DigestSchedule string

	// CycleTimeout bounds one cycle; zero means no bound
	CycleTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:   30 * time.Minute,
		DigestEnabled:  true,
		DigestSchedule: DefaultDigestSchedule,
		CycleTimeout:   10 * time.Minute,
	}
}

type clock struct {
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
	newTimer  func(d time.Duration) (<-chan time.Time, func())
}

func realClock() clock {
	return clock{
		now: time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		newTimer: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTimer(d)
			return t.C, func() { t.Stop() }
		},
	}
}

// Scheduler runs engine cycles on a timetable.
type Scheduler struct {
	engine Engine
	cfg    Config
	digest *Schedule
	clock  clock
	logger zerolog.Logger

	pollBusy   atomic.Bool
	digestBusy atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	cycles  sync.WaitGroup
}

// New creates a scheduler. It fails only on an unparsable digest schedule.
func New(engine Engine, cfg Config, logger *zerolog.Logger) (*Scheduler, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.PollInterval < MinPollInterval {
		cfg.PollInterval = MinPollInterval
	}
	if cfg.DigestSchedule == "" {
		cfg.DigestSchedule = DefaultDigestSchedule
	}
	digest, err := ParseCron(cfg.DigestSchedule)
	if err != nil {
		return nil, fmt.Errorf("digest schedule: %w", err)
	}

	return &Scheduler{
		engine: engine,
		cfg:    cfg,
		digest: digest,
		clock:  realClock(),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start launches the loops. ctx bounds every cycle the scheduler starts.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel

	ev := s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Bool("notify_on_boot", s.cfg.NotifyOnBoot).
		Bool("digest_enabled", s.cfg.DigestEnabled).
		Str("digest_schedule", s.digest.String())
	if s.cfg.DigestEnabled {
		ev = ev.Time("next_digest", s.NextDigest(s.clock.now()))
	}
	ev.Msg("Starting scheduler")

	s.loops.Add(1)
	go s.pollLoop(runCtx)
	if s.cfg.DigestEnabled {
		s.loops.Add(1)
		go s.digestLoop(runCtx)
	}
	return nil
}

// Stop cancels the loops and waits for running cycles to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping scheduler...")
	cancel()
	s.loops.Wait()
	s.cycles.Wait()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// NextDigest returns when the digest loop fires next after t.
func (s *Scheduler) NextDigest(t time.Time) time.Time {
	return s.digest.Next(t)
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.loops.Done()

	if s.cfg.NotifyOnBoot {
		s.trigger(ctx, &s.pollBusy, KindPoll, s.engine.PollCycle)
	} else {
		s.trigger(ctx, &s.pollBusy, KindPrime, s.engine.PrimeCycle)
	}

	tick, stop := s.clock.newTicker(s.cfg.PollInterval)
	defer stop()
	for {
		select {
		case <-tick:
			s.trigger(ctx, &s.pollBusy, KindPoll, s.engine.PollCycle)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) digestLoop(ctx context.Context) {
	defer s.loops.Done()

	for {
		now := s.clock.now()
		next := s.NextDigest(now)
		if next.IsZero() {
			s.logger.Error().Str("schedule", s.digest.String()).Msg("Digest schedule never fires; digest loop exiting")
			return
		}
		s.logger.Debug().Time("next_run", next).Msg("Digest scheduled")

		fire, stop := s.clock.newTimer(next.Sub(now))
		select {
		case <-fire:
			stop()
			s.trigger(ctx, &s.digestBusy, KindDigest, s.engine.DigestCycle)
		case <-ctx.Done():
			stop()
			return
		}
	}
}

// trigger starts fn in the background unless busy is already set.
// It reports whether the cycle was started.
func (s *Scheduler) trigger(ctx context.Context, busy *atomic.Bool, kind string, fn func(context.Context) error) bool {
	if ctx.Err() != nil {
		return false
	}
	if !busy.CompareAndSwap(false, true) {
		metrics.CycleSkipped.WithLabelValues(kind).Inc()
		s.logger.Warn().Str("cycle", kind).Msg("Previous cycle still running; tick skipped")
		return false
	}

	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer busy.Store(false)

		cycleCtx := logging.ContextWithCycle(ctx, kind)
		if s.cfg.CycleTimeout > 0 {
			var cancel context.CancelFunc
			cycleCtx, cancel = context.WithTimeout(cycleCtx, s.cfg.CycleTimeout)
			defer cancel()
		}

		start := s.clock.now()
		if err := fn(cycleCtx); err != nil {
			s.logger.Warn().Err(err).
				Str("cycle", kind).
				Str("correlation_id", logging.CorrelationIDFromContext(cycleCtx)).
				Dur("duration", s.clock.now().Sub(start)).
				Msg("Cycle failed")
		}
	}()
	return true
}
