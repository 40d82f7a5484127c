// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package twitch fetches the Drops campaign catalog from Twitch's GQL API and
// normalizes it into a models.Snapshot.
//
// A fetch validates (or refreshes) the access token, loads the
// ViewerDropsDashboard overview, then loads DropCampaignDetails for active
// campaigns in batches. Every upstream call runs through one circuit breaker.
// The fetcher never touches the snapshot store.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
)

// Fetcher loads the current campaign catalog.
type Fetcher struct {
	cfg    Config
	client *Client
	tokens *TokenSource
	logger zerolog.Logger
	now    func() time.Time
}

type fetcherOptions struct {
	httpClient *http.Client
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Fetcher.
type Option func(*fetcherOptions)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *fetcherOptions) { o.httpClient = hc }
}

// WithClock overrides the clock used for status mapping and FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(o *fetcherOptions) { o.now = now }
}

// withSleep replaces the rate-limit backoff wait (tests).
func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *fetcherOptions) { o.sleep = sleep }
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config, logger *zerolog.Logger, opts ...Option) *Fetcher {
	o := fetcherOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	client := NewClient(cfg, o.httpClient, logger)
	if o.sleep != nil {
		client.sleep = o.sleep
	}
	tokens := NewTokenSource(client, logger)
	tokens.now = o.now

	return &Fetcher{
		cfg:    client.cfg,
		client: client,
		tokens: tokens,
		logger: logger.With().Str("component", "fetcher").Logger(),
		now:    o.now,
	}
}

// BreakerState reports the upstream circuit state for health checks.
func (f *Fetcher) BreakerState() string {
	return f.client.BreakerState()
}

// Fetch returns a fresh snapshot, or a TransientError / FatalError. A
// snapshot from which malformed records were dropped is still returned; its
// Warning() describes the loss.
func (f *Fetcher) Fetch(ctx context.Context) (*models.Snapshot, error) {
	start := time.Now()
	snap, err := f.fetch(ctx)

	class := ""
	switch {
	case err == nil:
	case models.IsFatal(err):
		class = "fatal"
	default:
		class = "transient"
	}
	metrics.RecordFetch(time.Since(start), class, snap.Dropped())
	return snap, err
}

func (f *Fetcher) fetch(ctx context.Context) (*models.Snapshot, error) {
	creds, err := f.tokens.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	records, err := f.dashboard(ctx, creds)
	if err != nil {
		if errors.Is(err, errAuthRejected) || errors.Is(err, errMissingUserContext) {
			f.tokens.Invalidate()
		}
		return nil, err
	}

	details, err := f.details(ctx, creds, activeIDs(records))
	if err != nil {
		return nil, err
	}

	now := f.now()
	campaigns, rejected := Normalize(records, details, now)
	if len(records) > 0 && len(campaigns) == 0 {
		return nil, models.NewFatal("normalize",
			fmt.Errorf("all %d upstream records malformed, first: %w", len(records), rejected[0].Err))
	}
	for _, r := range rejected {
		f.logger.Debug().Int("index", r.Index).Str("campaign_id", r.ID).Err(r.Err).Msg("Dropped malformed record")
	}

	snap := models.NewSnapshot(now, campaigns, len(rejected))
	if w := snap.Warning(); w != nil {
		f.logger.Warn().Err(w).Msg("Snapshot built from partial upstream data")
	}
	f.logger.Debug().
		Int("records", len(records)).
		Int("campaigns", snap.Len()).
		Int("details", len(details)).
		Msg("Catalog fetched")
	return snap, nil
}

// dashboard loads the overview records.
func (f *Fetcher) dashboard(ctx context.Context, creds Credentials) ([]json.RawMessage, error) {
	body, err := f.client.GQL(ctx, OpDashboard, creds.AccessToken, dashboardOperation(f.cfg.DashboardHash))
	if err != nil {
		return nil, err
	}

	var resp dashboardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, models.NewFatal(OpDashboard, fmt.Errorf("unexpected response shape: %w", err))
	}
	if resp.Data.CurrentUser == nil || resp.Data.CurrentUser.DropCampaigns == nil {
		return nil, models.NewFatal(OpDashboard, errors.New("response has no data.currentUser.dropCampaigns array"))
	}
	return *resp.Data.CurrentUser.DropCampaigns, nil
}

// activeIDs lists, in order and without repeats, the IDs of overview records
// whose upstream status is ACTIVE.
func activeIDs(records []json.RawMessage) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, raw := range records {
		rc, err := decodeRecord(raw)
		if err != nil || rc.ID == "" || !strings.EqualFold(rc.Status, "ACTIVE") {
			continue
		}
		if _, dup := seen[rc.ID]; dup {
			continue
		}
		seen[rc.ID] = struct{}{}
		ids = append(ids, rc.ID)
	}
	return ids
}

// details loads DropCampaignDetails for ids in batches. Unusable elements of
// a batch are skipped; the overview alone still yields a campaign.
func (f *Fetcher) details(ctx context.Context, creds Credentials, ids []string) (map[string]*rawCampaign, error) {
	out := make(map[string]*rawCampaign, len(ids))
	for start := 0; start < len(ids); start += f.cfg.DetailBatchSize {
		end := min(start+f.cfg.DetailBatchSize, len(ids))

		ops := make([]operation, 0, end-start)
		for _, id := range ids[start:end] {
			ops = append(ops, detailsOperation(f.cfg.DetailsHash, id, creds.Login))
		}

		body, err := f.client.GQL(ctx, OpDetails, creds.AccessToken, ops)
		if err != nil {
			return nil, err
		}

		var elems []json.RawMessage
		if err := json.Unmarshal(body, &elems); err != nil {
			f.logger.Warn().Err(err).Int("batch_start", start).Msg("Details batch has unexpected shape, skipping")
			continue
		}
		for _, elem := range elems {
			var dr detailsResponse
			if err := json.Unmarshal(elem, &dr); err != nil || dr.Data.User == nil || len(dr.Data.User.DropCampaign) == 0 {
				continue
			}
			rc, err := decodeRecord(dr.Data.User.DropCampaign)
			if err != nil || rc.ID == "" {
				continue
			}
			out[rc.ID] = &rc
		}
	}
	return out, nil
}
