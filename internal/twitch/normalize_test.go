// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dropscout/internal/models"
)

var fixedNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

// record builds an upstream campaign object.
func record(id, game, status string, start, end time.Time) map[string]any {
	return map[string]any{
		"id":      id,
		"name":    id + " campaign",
		"status":  status,
		"startAt": start.Format(time.RFC3339),
		"endAt":   end.Format(time.RFC3339),
		"game": map[string]any{
			"id":          "g-" + id,
			"displayName": game,
			"slug":        "slug-" + id,
			"boxArtURL":   "https://static/" + id + ".jpg",
		},
	}
}

func withDrops(rec map[string]any, benefitIDs ...string) map[string]any {
	var edges []any
	for _, id := range benefitIDs {
		edges = append(edges, map[string]any{"benefit": map[string]any{
			"id": id, "name": "Reward " + id, "imageAssetURL": "https://img/" + id,
		}})
	}
	rec["timeBasedDrops"] = []any{map[string]any{"benefitEdges": edges}}
	return rec
}

func rawRecords(t *testing.T, elems ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(elems))
	for i, e := range elems {
		b, err := json.Marshal(e)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = b
	}
	return out
}

func TestMapStatus(t *testing.T) {
	past, future := fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)
	tests := []struct {
		status  string
		start   time.Time
		want    models.CampaignStatus
		wantErr bool
	}{
		{"ACTIVE", past, models.StatusActive, false},
		{"active", past, models.StatusActive, false},
		{"ACTIVE", future, models.StatusUpcoming, false},
		{"EXPIRED", past, models.StatusEnded, false},
		{"UPCOMING", future, models.StatusUpcoming, false},
		{"PAUSED", past, "", true},
		{"", past, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got, err := mapStatus(tt.status, tt.start, fixedNow)
			if (err != nil) != tt.wantErr {
				t.Fatalf("mapStatus err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("mapStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_Rejections(t *testing.T) {
	start, end := fixedNow.Add(-time.Hour), fixedNow.Add(48*time.Hour)

	noID := record("", "Rust", "ACTIVE", start, end)
	noGame := record("c2", "Rust", "ACTIVE", start, end)
	delete(noGame, "game")
	emptyGame := record("c3", "", "ACTIVE", start, end)
	badStatus := record("c4", "Rust", "PAUSED", start, end)
	badTime := record("c5", "Rust", "ACTIVE", start, end)
	badTime["endAt"] = "next tuesday"
	reversed := record("c6", "Rust", "ACTIVE", end, start)
	wrongType := record("c7", "Rust", "ACTIVE", start, end)
	wrongType["name"] = 42

	tests := []struct {
		name string
		elem any
		want error
	}{
		{"not an object", "just a string", errNotObject},
		{"array element", []any{1, 2}, errNotObject},
		{"missing id", noID, errMissingID},
		{"missing game", noGame, errMissingGame},
		{"empty game name", emptyGame, errMissingGame},
		{"unknown status", badStatus, errUnknownStatus},
		{"unparsable time", badTime, errBadTime},
		{"end before start", reversed, errEndBeforeStart},
		{"field of wrong type", wrongType, errNotObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := record("ok", "Valorant", "ACTIVE", start, end)
			got, rejected := Normalize(rawRecords(t, good, tt.elem), nil, fixedNow)
			if len(got) != 1 || got[0].ID != "ok" {
				t.Errorf("valid record lost: %+v", got)
			}
			if len(rejected) != 1 || !errors.Is(rejected[0].Err, tt.want) {
				t.Fatalf("rejected = %+v, want one %v", rejected, tt.want)
			}
			if rejected[0].Index != 1 {
				t.Errorf("rejection index = %d, want 1", rejected[0].Index)
			}
		})
	}
}

func TestNormalize_DuplicateID(t *testing.T) {
	start, end := fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)
	got, rejected := Normalize(rawRecords(t,
		record("dup", "Rust", "ACTIVE", start, end),
		record("dup", "Rust", "ACTIVE", start, end),
	), nil, fixedNow)

	if len(got) != 1 || len(rejected) != 1 || !errors.Is(rejected[0].Err, errDuplicateID) {
		t.Errorf("got %d campaigns, rejected %+v", len(got), rejected)
	}
}

func TestNormalize_Fields(t *testing.T) {
	start, end := fixedNow.Add(-time.Hour), fixedNow.Add(72*time.Hour)
	rec := withDrops(record("c1", "  Apex Legends ", "ACTIVE", start, end), "b1", "b2", "b1", "")

	got, rejected := Normalize(rawRecords(t, rec), nil, fixedNow)
	if len(rejected) != 0 || len(got) != 1 {
		t.Fatalf("Normalize = %+v, %+v", got, rejected)
	}
	c := got[0]
	if c.Game != "Apex Legends" || c.GameSlug != "slug-c1" || c.BoxArtURL != "https://static/c1.jpg" {
		t.Errorf("game fields = %q %q %q", c.Game, c.GameSlug, c.BoxArtURL)
	}
	if !c.StartsAt.Equal(start) || !c.EndsAt.Equal(end) || c.Status != models.StatusActive {
		t.Errorf("times/status = %v %v %v", c.StartsAt, c.EndsAt, c.Status)
	}
	if len(c.Benefits) != 2 || c.Benefits[0].ID != "b1" || c.Benefits[1].ID != "b2" {
		t.Errorf("benefits = %+v, want deduplicated b1,b2", c.Benefits)
	}
}

func TestNormalize_GameNameFallback(t *testing.T) {
	start, end := fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)
	rec := record("c1", "", "ACTIVE", start, end)
	rec["game"].(map[string]any)["name"] = "Rust"

	got, _ := Normalize(rawRecords(t, rec), nil, fixedNow)
	if len(got) != 1 || got[0].Game != "Rust" {
		t.Errorf("Game = %+v, want name fallback", got)
	}
}

func TestNormalize_DetailsFillMissingFields(t *testing.T) {
	start, end := fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)
	overview := record("c1", "Rust", "ACTIVE", start, end)
	overview["game"].(map[string]any)["slug"] = ""

	detail := &rawCampaign{
		ID:   "c1",
		Name: "detail name must not win",
		Game: &rawGame{DisplayName: "Other", Slug: "rust"},
		TimeBasedDrops: []rawDrop{{BenefitEdges: []rawBenefitEdge{
			{Benefit: &rawBenefit{ID: "b9", Name: "Skin"}},
		}}},
	}

	got, _ := Normalize(rawRecords(t, overview), map[string]*rawCampaign{"c1": detail}, fixedNow)
	if len(got) != 1 {
		t.Fatalf("got %d campaigns", len(got))
	}
	c := got[0]
	if c.Name != "c1 campaign" || c.Game != "Rust" {
		t.Errorf("overview fields overwritten: name=%q game=%q", c.Name, c.Game)
	}
	if c.GameSlug != "rust" {
		t.Errorf("GameSlug = %q, want filled from details", c.GameSlug)
	}
	if len(c.Benefits) != 1 || c.Benefits[0].Name != "Skin" {
		t.Errorf("Benefits = %+v, want details drops", c.Benefits)
	}
}

func TestActiveIDs(t *testing.T) {
	start, end := fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)
	ids := activeIDs(rawRecords(t,
		record("a", "Rust", "ACTIVE", start, end),
		record("b", "Rust", "EXPIRED", start, end),
		"garbage",
		record("a", "Rust", "ACTIVE", start, end),
		record("c", "Rust", "active", start, end),
	))
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("activeIDs = %v, want [a c]", ids)
	}
}
