// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dropscout/internal/engine"
	"github.com/tomtom215/dropscout/internal/fuzzy"
	"github.com/tomtom215/dropscout/internal/models"
)

var fetchedAt = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type fakeEngine struct {
	snap      *models.Snapshot
	search    engine.SearchResult
	searchErr error
	thisWeek  []models.Campaign
	weekErr   error
	lastQuery string
	upstream  string
}

func (f *fakeEngine) Search(_ context.Context, q string) (engine.SearchResult, error) {
	f.lastQuery = q
	return f.search, f.searchErr
}

func (f *fakeEngine) ActiveSnapshot() *models.Snapshot { return f.snap }

func (f *fakeEngine) ThisWeek(context.Context) ([]models.Campaign, error) {
	return f.thisWeek, f.weekErr
}

func (f *fakeEngine) UpstreamState() string { return f.upstream }

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return rec, resp
}

func testSnapshot() *models.Snapshot {
	return models.NewSnapshot(fetchedAt, []models.Campaign{
		{ID: "a", Game: "Rust", Status: models.StatusActive},
		{ID: "b", Game: "Apex", Status: models.StatusUpcoming},
	}, 0)
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing query", "/api/v1/search", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"too long", "/api/v1/search?q=" + strings.Repeat("x", 101), nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no snapshot", "/api/v1/search?q=rust", models.ErrNoSnapshot, http.StatusServiceUnavailable, "NO_SNAPSHOT"},
		{"no match", "/api/v1/search?q=zzz", models.ErrNoMatch, http.StatusNotFound, "NO_MATCH"},
		{"found", "/api/v1/search?q=rust", nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{
				searchErr: tt.err,
				search: engine.SearchResult{
					Query:      "rust",
					Best:       fuzzy.Match{Game: "Rust", Score: 400},
					SnapshotAt: fetchedAt,
				},
			}
			rec, resp := get(t, NewRouter(eng, Config{}), tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
				}
				return
			}
			if resp.Status != "success" || eng.lastQuery != "rust" {
				t.Errorf("resp = %+v, query = %q", resp, eng.lastQuery)
			}
			if resp.Metadata.SnapshotAt == nil || !resp.Metadata.SnapshotAt.Equal(fetchedAt) {
				t.Errorf("SnapshotAt = %v", resp.Metadata.SnapshotAt)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	eng := &fakeEngine{}
	h := &Handler{engine: eng, cfg: DefaultConfig(), now: func() time.Time { return fetchedAt.Add(time.Minute) }}
	router := h.routes()

	rec, _ := get(t, router, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before first fetch = %d, want 503", rec.Code)
	}

	eng.snap = testSnapshot()
	rec, _ = get(t, router, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"active":1`) {
		t.Errorf("healthz body = %s", rec.Body)
	}

	h.now = func() time.Time { return fetchedAt.Add(3 * time.Hour) }
	rec, _ = get(t, router, "/healthz")
	if !strings.Contains(rec.Body.String(), `"status":"stale"`) {
		t.Errorf("healthz body = %s, want stale", rec.Body)
	}
}

func TestHealth_OpenCircuitDegrades(t *testing.T) {
	eng := &fakeEngine{snap: testSnapshot(), upstream: "closed"}
	h := &Handler{engine: eng, cfg: DefaultConfig(), now: func() time.Time { return fetchedAt.Add(time.Minute) }}
	router := h.routes()

	rec, _ := get(t, router, "/healthz")
	if body := rec.Body.String(); !strings.Contains(body, `"status":"ok"`) || !strings.Contains(body, `"upstream_circuit":"closed"`) {
		t.Errorf("healthz body = %s", body)
	}

	eng.upstream = "open"
	rec, _ = get(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"status":"degraded"`) || !strings.Contains(body, `"upstream_circuit":"open"`) {
		t.Errorf("healthz body = %s, want degraded", body)
	}
}

func TestActiveAndThisWeek(t *testing.T) {
	eng := &fakeEngine{}
	router := NewRouter(eng, Config{})

	if rec, _ := get(t, router, "/api/v1/active"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("active before fetch = %d", rec.Code)
	}
	eng.weekErr = models.ErrNoSnapshot
	if rec, _ := get(t, router, "/api/v1/this-week"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("this-week before fetch = %d", rec.Code)
	}

	eng.snap = testSnapshot()
	eng.weekErr = nil
	rec, resp := get(t, router, "/api/v1/active")
	if rec.Code != http.StatusOK || resp.Metadata.Count == nil || *resp.Metadata.Count != 1 {
		t.Errorf("active = %d %s", rec.Code, rec.Body)
	}

	rec, resp = get(t, router, "/api/v1/this-week")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty this-week = %d %s", rec.Code, rec.Body)
	}
	if resp.Metadata.Count == nil || *resp.Metadata.Count != 0 {
		t.Errorf("count = %v", resp.Metadata.Count)
	}
}

func TestRateLimit(t *testing.T) {
	router := NewRouter(&fakeEngine{snap: testSnapshot()}, Config{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i := range 2 {
		if rec, _ := get(t, router, "/api/v1/active"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec, resp := get(t, router, "/api/v1/active")
	if rec.Code != http.StatusTooManyRequests || resp.Error == nil || resp.Error.Code != "RATE_LIMITED" {
		t.Errorf("third request = %d %s", rec.Code, rec.Body)
	}
}

func TestMetricsAndNotFound(t *testing.T) {
	router := NewRouter(&fakeEngine{}, Config{})

	rec, _ := get(t, router, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics = %d", rec.Code)
	}

	rec, resp := get(t, router, "/nope")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown route = %d %s", rec.Code, rec.Body)
	}
}
