// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package diff compares two catalog snapshots.
//
// Identity is by campaign ID only. A campaign appears when it is active now and
// was absent or not active before; it disappears when it was active before and
// is absent or not active now. With no previous snapshot nothing appears, so a
// restart without persisted state never re-announces the whole catalog.
package diff

import (
	"sort"

	"github.com/tomtom215/dropscout/internal/models"
)

// Diff computes the delta from previous to current. A nil previous means no
// history is available.
func Diff(previous, current *models.Snapshot) models.Delta {
	delta := models.Delta{
		Appeared:    []string{},
		Disappeared: []string{},
		Unchanged:   []string{},
		Campaigns:   map[string]models.Campaign{},
	}

	if previous == nil {
		delta.Unchanged = current.IDs()
		if delta.Unchanged == nil {
			delta.Unchanged = []string{}
		}
		return delta
	}

	for _, id := range current.IDs() {
		cur, _ := current.Get(id)
		prev, existed := previous.Get(id)

		switch {
		case cur.IsActive() && (!existed || !prev.IsActive()):
			delta.Appeared = append(delta.Appeared, id)
			delta.Campaigns[id] = cur
		case !cur.IsActive() && existed && prev.IsActive():
			delta.Disappeared = append(delta.Disappeared, id)
		default:
			delta.Unchanged = append(delta.Unchanged, id)
			if existed && !cur.SameContent(prev) {
				delta.Modified = append(delta.Modified, id)
			}
		}
	}

	// Active campaigns that vanished from the catalog entirely.
	for _, id := range previous.IDs() {
		prev, _ := previous.Get(id)
		if !prev.IsActive() {
			continue
		}
		if _, still := current.Get(id); !still {
			delta.Disappeared = append(delta.Disappeared, id)
		}
	}
	sort.Strings(delta.Disappeared)

	return delta
}
