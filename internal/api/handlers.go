// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/validation"
)

// SearchRequest holds the search query parameters.
type SearchRequest struct {
	Query string `query:"q" validate:"required,max=100"`
}

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Status     string     `json:"status"`
	Campaigns  int        `json:"campaigns"`
	Active     int        `json:"active"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds float64    `json:"age_seconds,omitempty"`
	Upstream   string     `json:"upstream_circuit,omitempty"`
}

// Health reports snapshot freshness and the upstream circuit state. It
// answers 503 until the first fetch and reports "degraded" while the
// circuit is open.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	snap := h.engine.ActiveSnapshot()
	upstream := h.engine.UpstreamState()
	if snap == nil {
		respondJSON(w, http.StatusServiceUnavailable, &Response{
			Status:   "success",
			Data:     HealthStatus{Status: "starting", Upstream: upstream},
			Metadata: Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	fetched := snap.FetchedAt()
	age := h.now().Sub(fetched)
	status := HealthStatus{
		Status:     "ok",
		Campaigns:  snap.Len(),
		Active:     len(snap.Active()),
		FetchedAt:  &fetched,
		AgeSeconds: age.Seconds(),
		Upstream:   upstream,
	}
	switch {
	case age > h.cfg.StaleAfter:
		status.Status = "stale"
	case upstream == "open":
		status.Status = "degraded"
	}
	respondData(w, status, Metadata{SnapshotAt: &fetched})
}

// Search runs a fuzzy game search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req := SearchRequest{Query: r.URL.Query().Get("q")}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	res, err := h.engine.Search(r.Context(), req.Query)
	switch {
	case err == nil:
		respondData(w, res, Metadata{SnapshotAt: &res.SnapshotAt})
	case errors.Is(err, models.ErrNoSnapshot):
		respondError(w, http.StatusServiceUnavailable, "NO_SNAPSHOT", "Catalog not fetched yet", nil)
	case errors.Is(err, models.ErrNoMatch):
		respondError(w, http.StatusNotFound, "NO_MATCH", "No game matches the query", nil)
	default:
		respondError(w, http.StatusInternalServerError, "SEARCH_FAILED", "Search failed", err)
	}
}

// Active lists active campaigns.
func (h *Handler) Active(w http.ResponseWriter, _ *http.Request) {
	snap := h.engine.ActiveSnapshot()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "NO_SNAPSHOT", "Catalog not fetched yet", nil)
		return
	}
	active := snap.Active()
	if active == nil {
		active = []models.Campaign{}
	}
	fetched := snap.FetchedAt()
	n := len(active)
	respondData(w, active, Metadata{SnapshotAt: &fetched, Count: &n})
}

// ThisWeek lists active campaigns ending before the next digest cutoff.
func (h *Handler) ThisWeek(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.engine.ThisWeek(r.Context())
	if errors.Is(err, models.ErrNoSnapshot) {
		respondError(w, http.StatusServiceUnavailable, "NO_SNAPSHOT", "Catalog not fetched yet", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Query failed", err)
		return
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	n := len(campaigns)
	respondData(w, campaigns, Metadata{Count: &n})
}
