// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/delivery"
	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/registry"
	"github.com/tomtom215/dropscout/internal/snapshot"
)

// Wednesday noon; the next digest cutoff is Monday 2026-03-09 00:00 UTC.
var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func campaign(id, game string, ends time.Time) models.Campaign {
	return models.Campaign{
		ID:       id,
		Name:     game + " Drops",
		Game:     game,
		StartsAt: testNow.Add(-24 * time.Hour),
		EndsAt:   ends,
		Status:   models.StatusActive,
	}
}

func snap(campaigns ...models.Campaign) *models.Snapshot {
	return models.NewSnapshot(testNow, campaigns, 0)
}

type fakeFetcher struct {
	mu      sync.Mutex
	results []*models.Snapshot
	errs    []error
}

func (f *fakeFetcher) push(s *models.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, s)
	f.errs = append(f.errs, err)
}

func (f *fakeFetcher) Fetch(context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil, errors.New("no scripted fetch")
	}
	s, err := f.results[0], f.errs[0]
	f.results, f.errs = f.results[1:], f.errs[1:]
	return s, err
}

type fakePersister struct {
	mu    sync.Mutex
	saved []*models.Snapshot
	err   error
}

func (p *fakePersister) LoadSnapshot(context.Context) (*models.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saved) == 0 {
		return nil, nil
	}
	return p.saved[len(p.saved)-1], nil
}

func (p *fakePersister) SaveSnapshot(_ context.Context, s *models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, s)
	return nil
}

func (p *fakePersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

// fakeDispatcher records batches and how many snapshots were persisted at
// the time each batch arrived.
type fakeDispatcher struct {
	persister      *fakePersister
	batches        [][]models.Obligation
	persistedAtRun []int
}

func (d *fakeDispatcher) Dispatch(_ context.Context, obligations []models.Obligation) *delivery.Report {
	d.batches = append(d.batches, obligations)
	d.persistedAtRun = append(d.persistedAtRun, d.persister.count())
	report := &delivery.Report{}
	for _, o := range obligations {
		report.Results = append(report.Results, delivery.Result{Obligation: o, State: delivery.StateDelivered})
	}
	return report
}

type fakeEvents struct {
	appeared, disappeared []string
}

func (f *fakeEvents) CampaignsAppeared(_ context.Context, cs []models.Campaign) {
	for _, c := range cs {
		f.appeared = append(f.appeared, c.ID)
	}
}

func (f *fakeEvents) CampaignsDisappeared(_ context.Context, cs []models.Campaign) {
	for _, c := range cs {
		f.disappeared = append(f.disappeared, c.ID)
	}
}

type harness struct {
	engine    *Engine
	fetcher   *fakeFetcher
	persister *fakePersister
	dispatch  *fakeDispatcher
	events    *fakeEvents
	registry  *registry.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	h := &harness{
		fetcher:   &fakeFetcher{},
		persister: &fakePersister{},
		events:    &fakeEvents{},
		registry:  registry.NewMemory(),
	}
	h.dispatch = &fakeDispatcher{persister: h.persister}
	store := snapshot.NewStore(h.persister, &logger)
	h.engine = New(h.fetcher, store, h.registry, h.dispatch, &logger, Config{},
		WithEvents(h.events),
		WithClock(func() time.Time { return testNow }),
	)
	return h
}

func TestEngine_BaselineThenAppearance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	week := testNow.Add(48 * time.Hour)

	if _, err := h.engine.AddFavorite(ctx, "g1", "u1", "rust"); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.SetChannel(ctx, "g1", "c1"); err != nil {
		t.Fatal(err)
	}

	// First poll establishes a baseline and notifies nobody.
	h.fetcher.push(snap(campaign("A", "Valorant", week)), nil)
	if err := h.engine.PollCycle(ctx); err != nil {
		t.Fatalf("first PollCycle: %v", err)
	}
	if len(h.dispatch.batches) != 0 {
		t.Fatalf("baseline dispatched %v", h.dispatch.batches)
	}

	h.fetcher.push(snap(campaign("B", "Rust", week)), nil)
	if err := h.engine.PollCycle(ctx); err != nil {
		t.Fatalf("second PollCycle: %v", err)
	}
	if len(h.dispatch.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(h.dispatch.batches))
	}

	got := h.dispatch.batches[0]
	if len(got) != 2 {
		t.Fatalf("obligations = %+v, want new-active and favorite-match", got)
	}
	reasons := map[models.Reason]models.Obligation{}
	for _, o := range got {
		reasons[o.Reason] = o
		if o.CampaignID != "B" || o.Destination.ChannelID != "c1" {
			t.Errorf("obligation = %+v", o)
		}
	}
	if fav, ok := reasons[models.ReasonFavoriteMatch]; !ok || len(fav.Watchers) != 1 || fav.Watchers[0] != "u1" {
		t.Errorf("favorite-match = %+v", fav)
	}
	if _, ok := reasons[models.ReasonNewActive]; !ok {
		t.Error("missing new-active obligation")
	}

	if h.dispatch.persistedAtRun[0] != 2 {
		t.Errorf("persisted snapshots at dispatch = %d, want 2", h.dispatch.persistedAtRun[0])
	}
	if len(h.events.appeared) != 1 || h.events.appeared[0] != "B" {
		t.Errorf("appeared events = %v", h.events.appeared)
	}
	if len(h.events.disappeared) != 1 || h.events.disappeared[0] != "A" {
		t.Errorf("disappeared events = %v", h.events.disappeared)
	}
}

func TestEngine_FetchFailureKeepsSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := snap(campaign("A", "Valorant", testNow.Add(time.Hour)))
	h.fetcher.push(first, nil)
	h.fetcher.push(nil, models.NewTransient("fetch", errors.New("502")))
	before := testutil.ToFloat64(metrics.PollCyclesTotal.WithLabelValues("error"))

	if err := h.engine.PrimeCycle(ctx); err != nil {
		t.Fatal(err)
	}
	err := h.engine.PollCycle(ctx)
	if !models.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
	if h.engine.ActiveSnapshot() != first {
		t.Error("failed fetch replaced the current snapshot")
	}
	if len(h.dispatch.batches) != 0 {
		t.Error("failed fetch dispatched")
	}
	if got := testutil.ToFloat64(metrics.PollCyclesTotal.WithLabelValues("error")) - before; got != 1 {
		t.Errorf("error cycles delta = %v, want 1", got)
	}
}

func TestEngine_PersistFailureStillDispatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.SetMode(ctx, "g1", models.ModeBroadcast); err != nil {
		t.Fatal(err)
	}

	h.fetcher.push(snap(), nil)
	if err := h.engine.PrimeCycle(ctx); err != nil {
		t.Fatal(err)
	}

	h.persister.err = errors.New("disk full")
	before := testutil.ToFloat64(metrics.SnapshotPersistErrors)
	next := snap(campaign("N", "Apex Legends", testNow.Add(time.Hour)))
	h.fetcher.push(next, nil)
	if err := h.engine.PollCycle(ctx); err != nil {
		t.Fatalf("PollCycle: %v", err)
	}

	if h.engine.ActiveSnapshot() != next {
		t.Error("in-memory swap did not happen")
	}
	if len(h.dispatch.batches) != 1 || len(h.dispatch.batches[0]) != 1 {
		t.Errorf("batches = %+v", h.dispatch.batches)
	}
	if got := testutil.ToFloat64(metrics.SnapshotPersistErrors) - before; got != 1 {
		t.Errorf("persist errors delta = %v, want 1", got)
	}
}

func TestEngine_Search(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Search(ctx, "rust"); !errors.Is(err, models.ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}

	h.fetcher.push(snap(
		campaign("A", "Rust", testNow.Add(time.Hour)),
		campaign("B", "Rust: Console Edition", testNow.Add(time.Hour)),
		campaign("C", "Valorant", testNow.Add(time.Hour)),
	), nil)
	if err := h.engine.PrimeCycle(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := h.engine.Search(ctx, "RUST")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Best.Game != "Rust" || !res.Best.Exact() || res.Ambiguous {
		t.Errorf("best = %+v ambiguous=%v", res.Best, res.Ambiguous)
	}
	if len(res.Alternatives) == 0 || res.Alternatives[0].Game != "Rust: Console Edition" {
		t.Errorf("alternatives = %+v", res.Alternatives)
	}
	if !res.SnapshotAt.Equal(testNow) {
		t.Errorf("SnapshotAt = %v", res.SnapshotAt)
	}

	if _, err := h.engine.Search(ctx, "zzqxj"); !errors.Is(err, models.ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestEngine_DigestAndThisWeek(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.DigestCycle(ctx); !errors.Is(err, models.ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
	if _, err := h.engine.ThisWeek(ctx); !errors.Is(err, models.ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}

	for _, g := range []string{"g1", "g2", "g3"} {
		if err := h.engine.SetChannel(ctx, g, "c-"+g); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.engine.SetWeeklyDigest(ctx, "g2", false); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.SetMode(ctx, "g3", models.ModeOff); err != nil {
		t.Fatal(err)
	}

	h.fetcher.push(snap(
		campaign("late", "Apex", testNow.Add(30*24*time.Hour)),
		campaign("soon", "Rust", testNow.Add(24*time.Hour)),
		campaign("sooner", "Valorant", testNow.Add(time.Hour)),
	), nil)
	if err := h.engine.PrimeCycle(ctx); err != nil {
		t.Fatal(err)
	}

	week, err := h.engine.ThisWeek(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(week) != 2 || week[0].ID != "sooner" || week[1].ID != "soon" {
		t.Errorf("ThisWeek = %+v", week)
	}

	if err := h.engine.DigestCycle(ctx); err != nil {
		t.Fatalf("DigestCycle: %v", err)
	}
	if len(h.dispatch.batches) != 1 || len(h.dispatch.batches[0]) != 1 {
		t.Fatalf("batches = %+v", h.dispatch.batches)
	}
	o := h.dispatch.batches[0][0]
	if o.Destination.GuildID != "g1" || o.Reason != models.ReasonWeeklyDigest || len(o.Campaigns) != 2 {
		t.Errorf("digest obligation = %+v", o)
	}
}

func TestEngine_RestoreIndexesPersistedSnapshot(t *testing.T) {
	logger := zerolog.Nop()
	p := &fakePersister{saved: []*models.Snapshot{snap(campaign("A", "Fortnite", testNow.Add(time.Hour)))}}
	e := New(&fakeFetcher{}, snapshot.NewStore(p, &logger), registry.NewMemory(), &fakeDispatcher{persister: p}, &logger, Config{})

	if err := e.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := e.Search(context.Background(), "fortnite")
	if err != nil || res.Best.Campaign.ID != "A" {
		t.Errorf("Search after restore = %+v, %v", res, err)
	}
}

func TestEngine_Favorites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, g := range []string{"Rust", "rust", "Valorant", "Apex"} {
		if _, err := h.engine.AddFavorite(ctx, "g1", "u1", g); err != nil {
			t.Fatal(err)
		}
	}
	list, err := h.engine.ListFavorites(ctx, "g1", "u1")
	if err != nil || len(list) != 3 {
		t.Fatalf("ListFavorites = %v, %v", list, err)
	}
	if ok, _ := h.engine.RemoveFavorite(ctx, "g1", "u1", "RUST"); !ok {
		t.Error("RemoveFavorite reported nothing removed")
	}
	if n, _ := h.engine.RemoveFavorites(ctx, "g1", "u1", []string{"valorant", "apex", "missing"}); n != 2 {
		t.Errorf("RemoveFavorites = %d, want 2", n)
	}
	if _, err := h.engine.AddFavorite(ctx, "", "u1", "Rust"); !errors.Is(err, registry.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}

	for _, u := range []string{"u3", "u2"} {
		if _, err := h.engine.AddFavorite(ctx, "g1", u, "Deadlock"); err != nil {
			t.Fatal(err)
		}
	}
	watchers, err := h.engine.Watchers(ctx, "g1", "DEADLOCK")
	if err != nil || len(watchers) != 2 || watchers[0] != "u2" || watchers[1] != "u3" {
		t.Errorf("Watchers = %v, %v; want [u2 u3]", watchers, err)
	}
}

func TestEngine_ResolveOnDemand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.SetMode(ctx, "g1", models.ModeFavorites); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.AddFavorite(ctx, "g1", "u1", "Rust"); err != nil {
		t.Fatal(err)
	}

	delta := models.Delta{
		Appeared:  []string{"R"},
		Campaigns: map[string]models.Campaign{"R": campaign("R", "Rust: Console Edition", testNow.Add(time.Hour))},
	}
	obs, err := h.engine.Resolve(ctx, delta)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(obs) != 1 || obs[0].Reason != models.ReasonFavoriteMatch || obs[0].CampaignID != "R" {
		t.Errorf("Resolve = %+v", obs)
	}
	if len(h.dispatch.batches) != 0 {
		t.Error("Resolve dispatched")
	}
}

type breakerFetcher struct {
	fakeFetcher
	state string
}

func (b *breakerFetcher) BreakerState() string { return b.state }

func TestEngine_UpstreamState(t *testing.T) {
	logger := zerolog.Nop()
	store := snapshot.NewStore(nil, &logger)

	plain := New(&fakeFetcher{}, store, registry.NewMemory(), &fakeDispatcher{}, &logger, Config{})
	if got := plain.UpstreamState(); got != "" {
		t.Errorf("UpstreamState without breaker = %q, want empty", got)
	}

	guarded := New(&breakerFetcher{state: "open"}, store, registry.NewMemory(), &fakeDispatcher{}, &logger, Config{})
	if got := guarded.UpstreamState(); got != "open" {
		t.Errorf("UpstreamState = %q, want open", got)
	}
}

// flakyRegistry fails AllGuildChannels a fixed number of times.
type flakyRegistry struct {
	*registry.Memory
	mu       sync.Mutex
	failures int
}

func (f *flakyRegistry) AllGuildChannels(ctx context.Context) ([]models.GuildConfig, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("registry unavailable")
	}
	return f.Memory.AllGuildChannels(ctx)
}

func TestEngine_RegistryFailureKeepsAppearancePending(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()
	persister := &fakePersister{}
	dispatch := &fakeDispatcher{persister: persister}
	reg := &flakyRegistry{Memory: registry.NewMemory()}
	fetcher := &fakeFetcher{}
	e := New(fetcher, snapshot.NewStore(persister, &logger), reg, dispatch, &logger, Config{},
		WithClock(func() time.Time { return testNow }))

	if err := e.SetChannel(ctx, "g1", "c1"); err != nil {
		t.Fatal(err)
	}
	week := testNow.Add(48 * time.Hour)
	first := snap(campaign("A", "Valorant", week))
	fetcher.push(first, nil)
	if err := e.PrimeCycle(ctx); err != nil {
		t.Fatal(err)
	}

	reg.failures = 1
	fetcher.push(snap(campaign("A", "Valorant", week), campaign("B", "Rust", week)), nil)
	if err := e.PollCycle(ctx); err == nil {
		t.Fatal("PollCycle should fail when the registry cannot be read")
	}
	if e.ActiveSnapshot() != first {
		t.Error("snapshot advanced despite the registry failure")
	}
	if persister.count() != 1 {
		t.Errorf("persisted snapshots = %d, want 1", persister.count())
	}
	if len(dispatch.batches) != 0 {
		t.Fatalf("failed cycle dispatched %+v", dispatch.batches)
	}

	fetcher.push(snap(campaign("A", "Valorant", week), campaign("B", "Rust", week)), nil)
	if err := e.PollCycle(ctx); err != nil {
		t.Fatalf("retry PollCycle: %v", err)
	}
	if len(dispatch.batches) != 1 || len(dispatch.batches[0]) != 1 {
		t.Fatalf("batches = %+v", dispatch.batches)
	}
	if o := dispatch.batches[0][0]; o.CampaignID != "B" || o.Reason != models.ReasonNewActive {
		t.Errorf("obligation = %+v", o)
	}
}
