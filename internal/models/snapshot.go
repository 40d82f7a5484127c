// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package models

import (
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is an immutable capture of the catalog at FetchedAt.
// Build one with NewSnapshot; the zero value is an empty snapshot.
type Snapshot struct {
	fetchedAt time.Time
	campaigns map[string]Campaign
	ids       []string
	dropped   int
}

// NewSnapshot copies campaigns into a new snapshot. Later entries with a
// duplicate ID replace earlier ones. dropped is the number of upstream records
// discarded during normalization.
func NewSnapshot(fetchedAt time.Time, campaigns []Campaign, dropped int) *Snapshot {
	m := make(map[string]Campaign, len(campaigns))
	for _, c := range campaigns {
		m[c.ID] = cloneCampaign(c)
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Snapshot{
		fetchedAt: fetchedAt.UTC(),
		campaigns: m,
		ids:       ids,
		dropped:   dropped,
	}
}

func cloneCampaign(c Campaign) Campaign {
	if c.Benefits != nil {
		b := make([]Benefit, len(c.Benefits))
		copy(b, c.Benefits)
		c.Benefits = b
	}
	return c
}

// FetchedAt returns when the snapshot was captured.
func (s *Snapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Len returns the number of campaigns.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Dropped returns the number of malformed upstream records discarded.
func (s *Snapshot) Dropped() int {
	if s == nil {
		return 0
	}
	return s.dropped
}

// Get returns the campaign with the given ID.
func (s *Snapshot) Get(id string) (Campaign, bool) {
	if s == nil {
		return Campaign{}, false
	}
	c, ok := s.campaigns[id]
	if !ok {
		return Campaign{}, false
	}
	return cloneCampaign(c), true
}

// IDs returns all campaign IDs in ascending order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Campaigns returns every campaign ordered by ID.
func (s *Snapshot) Campaigns() []Campaign {
	if s == nil {
		return nil
	}
	out := make([]Campaign, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, cloneCampaign(s.campaigns[id]))
	}
	return out
}

// Active returns the active campaigns ordered by ID.
func (s *Snapshot) Active() []Campaign {
	if s == nil {
		return nil
	}
	var out []Campaign
	for _, id := range s.ids {
		if c := s.campaigns[id]; c.IsActive() {
			out = append(out, cloneCampaign(c))
		}
	}
	return out
}

// Warning returns a PartialDataError annotation when records were dropped,
// or nil for a clean fetch.
func (s *Snapshot) Warning() *PartialDataError {
	if s == nil || s.dropped == 0 {
		return nil
	}
	return &PartialDataError{Dropped: s.dropped, Total: s.dropped + len(s.ids)}
}

type snapshotJSON struct {
	FetchedAt time.Time  `json:"fetched_at"`
	Dropped   int        `json:"dropped"`
	Campaigns []Campaign `json:"campaigns"`
}

// MarshalJSON encodes the snapshot for persistence.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		FetchedAt: s.FetchedAt(),
		Dropped:   s.Dropped(),
		Campaigns: s.Campaigns(),
	})
}

// UnmarshalJSON restores a persisted snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = *NewSnapshot(raw.FetchedAt, raw.Campaigns, raw.Dropped)
	return nil
}
