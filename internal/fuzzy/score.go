// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package fuzzy

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Tier is the scoring band a match landed in. Higher tiers always outrank lower ones.
type Tier int

const (
	TierNone Tier = iota
	TierEditDistance
	TierTokenOverlap
	TierContainment
)

// String returns the tier name used in logs and API responses.
func (t Tier) String() string {
	switch t {
	case TierContainment:
		return "containment"
	case TierTokenOverlap:
		return "token-overlap"
	case TierEditDistance:
		return "edit-distance"
	default:
		return "none"
	}
}

// Score bands. Each tier occupies its own hundred so a lower tier can never
// outrank a higher one.
const (
	ExactScore       = 400.0
	containmentBase  = 300.0
	overlapBase      = 200.0
	editDistanceSpan = 100.0

	// minContainedRunes guards against one- and two-letter strings matching everything.
	minContainedRunes = 3
)

// query is a pre-normalized search term.
type query struct {
	key    string
	tokens []string
	set    map[string]struct{}
}

func newQuery(text string) query {
	key := Normalize(text)
	toks := Tokens(key)
	return query{key: key, tokens: toks, set: tokenSet(toks)}
}

// score rates one game against the query. It is a pure function of its inputs.
func score(q query, e *entry) (float64, Tier) {
	if q.key == e.key {
		return ExactScore, TierContainment
	}
	if s, ok := containmentScore(q.key, e.key); ok {
		return s, TierContainment
	}
	if s, ok := overlapScore(q.set, e.set); ok {
		return s, TierTokenOverlap
	}
	return editScore(q, e), TierEditDistance
}

// containmentScore scores one string containing the other:
// 300 + 90*coverage, plus 10 when the shorter string is a prefix.
func containmentScore(a, b string) (float64, bool) {
	shorter, longer := a, b
	if runeLen(shorter) > runeLen(longer) {
		shorter, longer = longer, shorter
	}
	if runeLen(shorter) < minContainedRunes || !strings.Contains(longer, shorter) {
		return 0, false
	}
	coverage := float64(runeLen(shorter)) / float64(runeLen(longer))
	s := containmentBase + 90*coverage
	if strings.HasPrefix(longer, shorter) {
		s += 10
	}
	if s >= ExactScore {
		s = ExactScore - 0.01
	}
	return s, true
}

// overlapScore is a Dice coefficient over non-stop-word tokens.
func overlapScore(q, g map[string]struct{}) (float64, bool) {
	if len(q) == 0 || len(g) == 0 {
		return 0, false
	}
	shared := 0
	for tok := range q {
		if _, ok := g[tok]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0, false
	}
	dice := 2 * float64(shared) / float64(len(q)+len(g))
	return overlapBase + 99*dice, true
}

// editScore is the normalized Levenshtein similarity scaled to [0, 100).
// Single-word queries are also compared against each word of the game so a
// misspelled "fortnit" still finds "fortnite battle royale".
func editScore(q query, e *entry) float64 {
	best := similarity(q.key, e.key)
	if len(q.tokens) == 1 {
		for _, tok := range e.tokens {
			if s := similarity(q.key, tok); s > best {
				best = s
			}
		}
	}
	return editDistanceSpan * best
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := runeLen(a)
	if n := runeLen(b); n > longest {
		longest = n
	}
	d := levenshtein.ComputeDistance(a, b)
	s := 1 - float64(d)/float64(longest)
	if s >= 1 {
		// Equal strings are handled by the containment tier.
		s = 0.99
	}
	if s < 0 {
		return 0
	}
	return s
}

// Matches reports whether two names refer to the same game: equal after
// normalization, or the shorter name's words appear as a contiguous run of
// whole words in the longer one with at least three runes on the shorter
// side. "Rust" matches "Rust: Console Edition" but not "Trust No One" or
// "Rusty Lake".
func Matches(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	shorter, longer := na, nb
	if runeLen(shorter) > runeLen(longer) {
		shorter, longer = longer, shorter
	}
	if runeLen(shorter) < minContainedRunes {
		return false
	}
	return containsRun(Tokens(longer), Tokens(shorter))
}

// containsRun reports whether needle occurs as consecutive elements of hay.
func containsRun(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, tok := range needle {
			if hay[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}
