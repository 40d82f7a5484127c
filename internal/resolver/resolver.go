// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package resolver turns a snapshot delta and the subscription registry into
// notification obligations.
//
// Resolution is a pure function of (delta, registry contents): running it twice
// yields the same ordered obligations. A destination never receives two
// obligations with the same (campaign, reason) from one call.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/fuzzy"
	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/registry"
)

// Matcher decides whether a user's favorite refers to a campaign's game.
type Matcher func(favorite, game string) bool

// Resolver computes obligations.
type Resolver struct {
	matcher Matcher
	logger  zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatcher replaces the default containment-tier fuzzy matcher.
func WithMatcher(m Matcher) Option {
	return func(r *Resolver) {
		if m != nil {
			r.matcher = m
		}
	}
}

// New creates a resolver.
func New(logger *zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		matcher: fuzzy.Matches,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// collector deduplicates obligations by key.
type collector struct {
	seen map[models.ObligationKey]struct{}
	out  []models.Obligation
}

func newCollector() *collector {
	return &collector{seen: make(map[models.ObligationKey]struct{})}
}

func (c *collector) add(o models.Obligation) {
	k := o.Key()
	if _, dup := c.seen[k]; dup {
		return
	}
	c.seen[k] = struct{}{}
	c.out = append(c.out, o)
}

func (c *collector) sorted() []models.Obligation {
	sort.SliceStable(c.out, func(i, j int) bool { return c.out[i].Less(c.out[j]) })
	return c.out
}

// Resolve emits new-active and favorite-match obligations for every appeared
// campaign. The guild's notify mode decides which kinds it receives.
// Favorite matches produce one obligation per guild listing every watcher.
func (r *Resolver) Resolve(ctx context.Context, delta models.Delta, reg registry.Reader) ([]models.Obligation, error) {
	appeared := delta.AppearedCampaigns()
	if len(appeared) == 0 {
		return nil, nil
	}

	guilds, err := reg.AllGuildChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}

	c := newCollector()
	for _, g := range guilds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mode := g.Mode
		if !mode.Broadcasts() && !mode.MatchesFavorites() {
			continue
		}

		var favorites map[string][]string
		if mode.MatchesFavorites() {
			favorites, err = reg.GuildFavorites(ctx, g.GuildID)
			if err != nil {
				return nil, fmt.Errorf("guild %s favorites: %w", g.GuildID, err)
			}
		}

		dest := g.Destination()
		for _, camp := range appeared {
			if mode.Broadcasts() {
				c.add(models.Obligation{
					Destination: dest,
					CampaignID:  camp.ID,
					Reason:      models.ReasonNewActive,
					Campaigns:   []models.Campaign{camp},
				})
			}
			if watchers := r.watchers(favorites, camp.Game); len(watchers) > 0 {
				c.add(models.Obligation{
					Destination: dest,
					CampaignID:  camp.ID,
					Reason:      models.ReasonFavoriteMatch,
					Campaigns:   []models.Campaign{camp},
					Watchers:    watchers,
				})
			}
		}
	}

	out := c.sorted()
	r.logger.Debug().
		Int("appeared", len(appeared)).
		Int("guilds", len(guilds)).
		Int("obligations", len(out)).
		Msg("Resolved delta")
	return out, nil
}

// watchers returns the sorted users with at least one favorite matching game.
func (r *Resolver) watchers(favorites map[string][]string, game string) []string {
	var out []string
	for user, games := range favorites {
		for _, fav := range games {
			if r.matcher(fav, game) {
				out = append(out, user)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ResolveDigest emits one weekly-digest obligation per guild that has the
// digest enabled and is not muted. Each obligation batches every active
// campaign ending no later than cutoff, ordered by end time then ID. Guilds
// get nothing when no campaign qualifies.
func (r *Resolver) ResolveDigest(ctx context.Context, snap *models.Snapshot, cutoff time.Time, reg registry.Reader) ([]models.Obligation, error) {
	batch := EndingBy(snap, cutoff)
	if len(batch) == 0 {
		return nil, nil
	}

	guilds, err := reg.AllGuildChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}

	c := newCollector()
	for _, g := range guilds {
		if !g.WeeklyDigest || g.Mode == models.ModeOff {
			continue
		}
		campaigns := make([]models.Campaign, len(batch))
		copy(campaigns, batch)
		c.add(models.Obligation{
			Destination: g.Destination(),
			Reason:      models.ReasonWeeklyDigest,
			Campaigns:   campaigns,
		})
	}

	out := c.sorted()
	r.logger.Debug().
		Time("cutoff", cutoff).
		Int("campaigns", len(batch)).
		Int("obligations", len(out)).
		Msg("Resolved weekly digest")
	return out, nil
}

// EndingBy returns the active campaigns whose end is not after cutoff,
// ordered by end time then ID. Campaigns without an end time are excluded.
func EndingBy(snap *models.Snapshot, cutoff time.Time) []models.Campaign {
	var out []models.Campaign
	for _, c := range snap.Active() {
		if c.EndsAt.IsZero() || c.EndsAt.After(cutoff) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EndsAt.Equal(out[j].EndsAt) {
			return out[i].EndsAt.Before(out[j].EndsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NextDigestCutoff returns the next Monday 00:00 UTC strictly after the
// current day. On a Monday it returns the following Monday.
func NextDigestCutoff(now time.Time) time.Time {
	now = now.UTC()
	daysAhead := (8 - int(now.Weekday())) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, daysAhead)
}
