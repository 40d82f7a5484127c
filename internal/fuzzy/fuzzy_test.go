// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package fuzzy

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/dropscout/internal/models"
)

var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func active(id, game string, endsIn time.Duration) models.Campaign {
	return models.Campaign{ID: id, Game: game, Status: models.StatusActive, EndsAt: testNow.Add(endsIn)}
}

func buildIndex(campaigns ...models.Campaign) *Index {
	return Build(models.NewSnapshot(testNow, campaigns, 0))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"VALORANT", "valorant"},
		{"  Pokémon_Scarlet  ", "pokemon scarlet"},
		{"Assassin's Creed: Valhalla", "assassins creed valhalla"},
		{"Tom Clancy’s Rainbow Six® Siege", "tom clancys rainbow six siege"},
		{"Straße", "strasse"},
		{"Rocket   League\t", "rocket league"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuery_Tiers(t *testing.T) {
	ix := buildIndex(
		active("1", "Rust", time.Hour),
		active("2", "Rust Console Edition", time.Hour),
		active("3", "League of Legends", time.Hour),
		active("4", "VALORANT", time.Hour),
		active("5", "Dust", time.Hour),
	)

	tests := []struct {
		name      string
		query     string
		wantFirst string
		wantTier  Tier
		wantExact bool
		wantLen   int
	}{
		{"exact is case-insensitive", "valorant", "VALORANT", TierContainment, true, 1},
		{"exact outranks containment", "rust", "Rust", TierContainment, true, 2},
		{"token overlap ignores order", "legends league", "League of Legends", TierTokenOverlap, false, 1},
		{"edit distance fallback", "valornt", "VALORANT", TierEditDistance, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Query(tt.query, 0)
			if len(got) != tt.wantLen {
				t.Fatalf("Query(%q) returned %d matches (%v), want %d", tt.query, len(got), got, tt.wantLen)
			}
			if got[0].Game != tt.wantFirst {
				t.Errorf("first match = %q, want %q", got[0].Game, tt.wantFirst)
			}
			if got[0].Tier != tt.wantTier {
				t.Errorf("tier = %v, want %v", got[0].Tier, tt.wantTier)
			}
			if got[0].Exact() != tt.wantExact {
				t.Errorf("Exact() = %v, want %v", got[0].Exact(), tt.wantExact)
			}
		})
	}
}

func TestQuery_ContainmentScore(t *testing.T) {
	ix := buildIndex(active("1", "Rust Console Edition", time.Hour))
	got := ix.Query("rust", 0)
	if len(got) != 1 {
		t.Fatalf("expected one match, got %v", got)
	}
	// coverage 4/20, prefix bonus applies
	want := 300 + 90*0.2 + 10
	if math.Abs(got[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got[0].Score, want)
	}
}

func TestQuery_NoMatchIsEmpty(t *testing.T) {
	ix := buildIndex(active("1", "Rust", time.Hour), active("2", "VALORANT", time.Hour))

	for _, q := range []string{"zzzzqqqq", "", "   !!! "} {
		if got := ix.Query(q, 0); len(got) != 0 {
			t.Errorf("Query(%q) = %v, want empty", q, got)
		}
	}

	var nilIndex *Index
	if got := nilIndex.Query("rust", 0); got != nil {
		t.Errorf("nil index Query = %v, want nil", got)
	}
}

func TestQuery_TieBreaks(t *testing.T) {
	ix := buildIndex(
		active("a1", "League Alpha", time.Hour),
		active("a2", "League Alpha", 2*time.Hour),
		active("b1", "League Omega", time.Hour),
		active("c1", "League Gamma", time.Hour),
	)

	got := ix.Query("league", 0)
	var order []string
	for _, m := range got {
		order = append(order, m.Game)
	}
	// Equal scores: fewer active campaigns first, then lexical order.
	want := []string{"League Gamma", "League Omega", "League Alpha"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if got[2].ActiveCount != 2 {
		t.Errorf("League Alpha active count = %d, want 2", got[2].ActiveCount)
	}
}

func TestQuery_Limit(t *testing.T) {
	ix := buildIndex(
		active("1", "League Alpha", time.Hour),
		active("2", "League Omega", time.Hour),
	)
	if got := ix.Query("league", 1); len(got) != 1 {
		t.Errorf("limit 1 returned %d matches", len(got))
	}
}

func TestQuery_Deterministic(t *testing.T) {
	campaigns := []models.Campaign{
		active("1", "League Alpha", time.Hour),
		active("2", "League Omega", time.Hour),
		active("3", "League of Legends", 3*time.Hour),
		active("4", "Legends of Runeterra", time.Hour),
		active("5", "Apex Legends", time.Hour),
	}
	queries := []string{"league", "legends", "leage", "apex", "runeterra legends"}

	first := buildIndex(campaigns...)
	reversed := make([]models.Campaign, len(campaigns))
	for i, c := range campaigns {
		reversed[len(campaigns)-1-i] = c
	}
	second := buildIndex(reversed...)

	for _, q := range queries {
		a := first.Query(q, 0)
		for i := 0; i < 5; i++ {
			if b := first.Query(q, 0); !reflect.DeepEqual(a, b) {
				t.Fatalf("Query(%q) not stable across calls: %v vs %v", q, a, b)
			}
		}
		if b := second.Query(q, 0); !reflect.DeepEqual(a, b) {
			t.Errorf("Query(%q) depends on input order: %v vs %v", q, a, b)
		}
	}
}

func TestBuild_BestCampaign(t *testing.T) {
	ended := models.Campaign{ID: "a", Game: "Rust", Status: models.StatusEnded, EndsAt: testNow.Add(-time.Hour)}
	late := active("b", "Rust", 48*time.Hour)
	soon := active("c", "rust", 2*time.Hour)

	ix := buildIndex(ended, late, soon)
	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 game", ix.Len())
	}
	got := ix.Query("rust", 0)[0]
	if got.Campaign.ID != "c" {
		t.Errorf("best campaign = %s, want c (active, ending soonest)", got.Campaign.ID)
	}
	if got.Game != "Rust" {
		t.Errorf("display name = %q, want name from lowest campaign ID", got.Game)
	}
	if got.ActiveCount != 2 {
		t.Errorf("ActiveCount = %d, want 2", got.ActiveCount)
	}
}

func TestWithMinScore(t *testing.T) {
	snap := models.NewSnapshot(testNow, []models.Campaign{active("1", "VALORANT", time.Hour)}, 0)

	if got := Build(snap).Query("valornt", 0); len(got) != 1 {
		t.Fatalf("default floor should admit close typo, got %v", got)
	}
	if got := Build(snap, WithMinScore(95)).Query("valornt", 0); len(got) != 0 {
		t.Errorf("floor 95 should reject typo scoring 87.5, got %v", got)
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"valorant", "VALORANT", true},
		{"league", "League of Legends", true},
		{"League of Legends: Worlds", "league of legends", true},
		{"lo", "Lost Ark", false},
		{"Rust", "Dust", false},
		{"", "Rust", false},
		{"Rust", "Rust: Console Edition", true},
		{"Legends", "League of Legends", true},
		{"of Legends", "League of Legends", true},
		{"Rust", "Trust No One", false},
		{"War", "Software Inc", false},
		{"Rust", "Rusty Lake", false},
		{"League Legends", "League of Legends", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"~"+tt.b, func(t *testing.T) {
			if got := Matches(tt.a, tt.b); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAmbiguous(t *testing.T) {
	tests := []struct {
		name    string
		matches []Match
		want    bool
	}{
		{"single", []Match{{Score: 350, Tier: TierContainment}}, false},
		{"exact top", []Match{{Score: ExactScore, Tier: TierContainment}, {Score: 395, Tier: TierContainment}}, false},
		{"close same tier", []Match{{Score: 355, Tier: TierContainment}, {Score: 350, Tier: TierContainment}}, true},
		{"far apart", []Match{{Score: 390, Tier: TierContainment}, {Score: 320, Tier: TierContainment}}, false},
		{"different tiers", []Match{{Score: 301, Tier: TierContainment}, {Score: 299, Tier: TierTokenOverlap}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ambiguous(tt.matches); got != tt.want {
				t.Errorf("Ambiguous() = %v, want %v", got, tt.want)
			}
		})
	}
}
