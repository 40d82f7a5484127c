// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/dropscout/internal/fuzzy"
	"github.com/tomtom215/dropscout/internal/models"
)

// SearchResult is the outcome of a game search.
type SearchResult struct {
	Query string      `json:"query"`
	Best  fuzzy.Match `json:"best"`
	// Ambiguous is set when a runner-up scored close to Best on the same tier.
	Ambiguous    bool          `json:"ambiguous"`
	Alternatives []fuzzy.Match `json:"alternatives,omitempty"`
	SnapshotAt   time.Time     `json:"snapshot_at"`
}

// Search finds the game best matching query in the current snapshot.
// It returns models.ErrNoSnapshot before the first fetch and models.ErrNoMatch
// when nothing clears the score floor.
func (e *Engine) Search(_ context.Context, query string) (SearchResult, error) {
	ix := e.index.Load()
	if ix == nil {
		return SearchResult{}, models.ErrNoSnapshot
	}

	matches := ix.Query(query, e.cfg.SearchLimit)
	if len(matches) == 0 {
		return SearchResult{}, models.ErrNoMatch
	}

	res := SearchResult{
		Query:      query,
		Best:       matches[0],
		Ambiguous:  fuzzy.Ambiguous(matches),
		SnapshotAt: ix.Snapshot().FetchedAt(),
	}
	if len(matches) > 1 {
		res.Alternatives = matches[1:]
	}
	return res, nil
}
