// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package fuzzy provides the searchable game-name index built from a catalog snapshot.
//
// Scoring is tiered and deterministic:
//
//   - containment (300-400): one normalized name contains the other; 400 is exact
//   - token overlap (200-299): Dice coefficient over shared words
//   - edit distance (0-99): Levenshtein similarity, used only when neither of
//     the tiers above matches
//
// Results below the minimum score are omitted; an empty result means "no match"
// and is not an error. Ties are broken by fewer active campaigns for the game,
// then by normalized name, then by display name.
//
// An Index is immutable and safe for concurrent queries. It is rebuilt
// wholesale for every snapshot and never patched.
package fuzzy

import (
	"sort"

	"github.com/tomtom215/dropscout/internal/models"
)

// DefaultMinScore is the score floor below which results are discarded.
const DefaultMinScore = 45.0

// Match is one ranked search result.
type Match struct {
	Game        string          `json:"game"`
	Score       float64         `json:"score"`
	Tier        Tier            `json:"-"`
	TierName    string          `json:"tier"`
	ActiveCount int             `json:"active_campaigns"`
	Campaign    models.Campaign `json:"campaign"`
}

// Exact reports whether the query equalled the game name after normalization.
func (m Match) Exact() bool {
	return m.Score >= ExactScore
}

type entry struct {
	key         string
	tokens      []string
	set         map[string]struct{}
	display     string
	activeCount int
	best        models.Campaign
}

// Index is a snapshot-scoped searchable view over game names.
type Index struct {
	snapshot *models.Snapshot
	entries  []*entry
	minScore float64
}

// Option configures Build.
type Option func(*Index)

// WithMinScore sets the result score floor. Values <= 0 keep the default.
func WithMinScore(floor float64) Option {
	return func(ix *Index) {
		if floor > 0 {
			ix.minScore = floor
		}
	}
}

// Build indexes every game name in the snapshot. It is a pure function of
// the snapshot's contents.
func Build(snap *models.Snapshot, opts ...Option) *Index {
	ix := &Index{snapshot: snap, minScore: DefaultMinScore}
	for _, opt := range opts {
		opt(ix)
	}

	byKey := make(map[string]*entry)
	for _, c := range snap.Campaigns() {
		key := Normalize(c.Game)
		if key == "" {
			continue
		}
		e, ok := byKey[key]
		if !ok {
			toks := Tokens(key)
			e = &entry{key: key, tokens: toks, set: tokenSet(toks), display: c.Game, best: c}
			byKey[key] = e
		} else if betterCampaign(c, e.best) {
			// Campaigns arrive in ID order, so the first one already named the game.
			e.best = c
		}
		if c.IsActive() {
			e.activeCount++
		}
	}

	ix.entries = make([]*entry, 0, len(byKey))
	for _, e := range byKey {
		ix.entries = append(ix.entries, e)
	}
	sort.Slice(ix.entries, func(i, j int) bool { return ix.entries[i].key < ix.entries[j].key })
	return ix
}

// betterCampaign picks the representative campaign for a game:
// active first, then the one ending soonest, then the lowest ID.
func betterCampaign(a, b models.Campaign) bool {
	if a.IsActive() != b.IsActive() {
		return a.IsActive()
	}
	switch {
	case a.EndsAt.IsZero() && !b.EndsAt.IsZero():
		return false
	case !a.EndsAt.IsZero() && b.EndsAt.IsZero():
		return true
	case !a.EndsAt.Equal(b.EndsAt):
		return a.EndsAt.Before(b.EndsAt)
	}
	return a.ID < b.ID
}

// Snapshot returns the snapshot this index was built from.
func (ix *Index) Snapshot() *models.Snapshot {
	return ix.snapshot
}

// Len returns the number of distinct games.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Games returns every indexed display name in normalized order.
func (ix *Index) Games() []string {
	out := make([]string, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.display
	}
	return out
}

// Query ranks games against text. limit <= 0 returns every match above the floor.
// Edit-distance results are only produced when no game matched on a higher tier.
func (ix *Index) Query(text string, limit int) []Match {
	if ix == nil {
		return nil
	}
	q := newQuery(text)
	if q.key == "" {
		return nil
	}

	var strong, weak []Match
	for _, e := range ix.entries {
		s, tier := score(q, e)
		if s < ix.minScore {
			continue
		}
		m := Match{
			Game:        e.display,
			Score:       s,
			Tier:        tier,
			TierName:    tier.String(),
			ActiveCount: e.activeCount,
			Campaign:    e.best,
		}
		if tier == TierEditDistance {
			weak = append(weak, m)
		} else {
			strong = append(strong, m)
		}
	}

	out := strong
	if len(out) == 0 {
		out = weak
	}
	sort.SliceStable(out, func(i, j int) bool { return rankLess(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func rankLess(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ActiveCount != b.ActiveCount {
		return a.ActiveCount < b.ActiveCount
	}
	ka, kb := Normalize(a.Game), Normalize(b.Game)
	if ka != kb {
		return ka < kb
	}
	return a.Game < b.Game
}

// ambiguityMargin is how close the runner-up must score to the best match,
// within the same tier, for a search to be reported as ambiguous.
const ambiguityMargin = 10.0

// Ambiguous reports whether the top result is not exact and a runner-up in
// the same tier scored within the ambiguity margin.
func Ambiguous(matches []Match) bool {
	if len(matches) < 2 || matches[0].Exact() {
		return false
	}
	return matches[0].Tier == matches[1].Tier && matches[0].Score-matches[1].Score < ambiguityMargin
}
