// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package delivery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/dropscout/internal/metrics"
)

// GateConfig bounds how fast and how widely sends proceed.
type GateConfig struct {
	// Parallelism caps concurrent sends across all domains.
	Parallelism int
	// GlobalRate is sends per second across all domains; zero is unlimited.
	GlobalRate  float64
	GlobalBurst int

	// DomainConcurrency caps concurrent sends to one domain (guild).
	DomainConcurrency int
	// DomainRate is sends per second to one domain; zero is unlimited.
	DomainRate  float64
	DomainBurst int
}

func (c GateConfig) withDefaults() GateConfig {
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.GlobalBurst <= 0 {
		c.GlobalBurst = 1
	}
	if c.DomainConcurrency <= 0 {
		c.DomainConcurrency = 1
	}
	if c.DomainBurst <= 0 {
		c.DomainBurst = 1
	}
	return c
}

type domainGate struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// Gate admits sends. Every send first holds a slot of its domain, then a
// global slot, then waits on the domain and global rate limiters.
type Gate struct {
	cfg     GateConfig
	global  chan struct{}
	limiter *rate.Limiter

	mu      sync.Mutex
	domains map[string]*domainGate
}

// NewGate creates a gate.
func NewGate(cfg GateConfig) *Gate {
	cfg = cfg.withDefaults()
	return &Gate{
		cfg:     cfg,
		global:  make(chan struct{}, cfg.Parallelism),
		limiter: newLimiter(cfg.GlobalRate, cfg.GlobalBurst),
		domains: make(map[string]*domainGate),
	}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (g *Gate) domain(key string) *domainGate {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.domains[key]
	if !ok {
		d = &domainGate{
			sem:     make(chan struct{}, g.cfg.DomainConcurrency),
			limiter: newLimiter(g.cfg.DomainRate, g.cfg.DomainBurst),
		}
		g.domains[key] = d
	}
	return d
}

// Acquire blocks until a send to domain may proceed. The returned release
// must be called once the send finishes. On cancellation nothing is held.
func (g *Gate) Acquire(ctx context.Context, domain string) (release func(), err error) {
	start := time.Now()
	defer func() {
		if err == nil {
			metrics.DispatchGateWait.Observe(time.Since(start).Seconds())
		}
	}()

	d := g.domain(domain)
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case g.global <- struct{}{}:
	case <-ctx.Done():
		<-d.sem
		return nil, ctx.Err()
	}

	release = func() {
		<-g.global
		<-d.sem
	}

	if err := d.limiter.Wait(ctx); err != nil {
		release()
		return nil, waitErr(ctx, err)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		release()
		return nil, waitErr(ctx, err)
	}
	return release, nil
}

// waitErr prefers the context's own error; rate.Limiter reports a deadline
// it cannot meet with its own message.
func waitErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
