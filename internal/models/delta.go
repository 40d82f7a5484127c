// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package models

// Delta is the difference between two snapshots. Appeared, Disappeared and
// Unchanged are disjoint and sorted. Modified is a subset of Unchanged whose
// content changed; it is informational and never produces alerts.
type Delta struct {
	Appeared    []string `json:"appeared"`
	Disappeared []string `json:"disappeared"`
	Unchanged   []string `json:"unchanged"`
	Modified    []string `json:"modified,omitempty"`

	// Campaigns holds the full record for every Appeared ID.
	Campaigns map[string]Campaign `json:"campaigns"`
}

// Empty reports whether nothing appeared or disappeared.
func (d Delta) Empty() bool {
	return len(d.Appeared) == 0 && len(d.Disappeared) == 0
}

// AppearedCampaigns returns the appeared campaigns in ID order.
func (d Delta) AppearedCampaigns() []Campaign {
	out := make([]Campaign, 0, len(d.Appeared))
	for _, id := range d.Appeared {
		if c, ok := d.Campaigns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
