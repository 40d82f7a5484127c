// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

/*
Package models defines the data structures shared by every DropScout component.

Key Components:

  - Campaign: a single Drops campaign as normalized from the upstream catalog
  - Snapshot: an immutable capture of all campaigns known at one fetch
  - Delta: the structured difference between two snapshots
  - GuildConfig: per-guild notification channel and notification mode
  - Obligation: a (destination, campaign, reason) notification owed to a guild
  - TransientError, FatalError, PartialDataError: the engine error taxonomy

Ownership:

The engine owns Snapshot and Delta for one cycle only. GuildConfig and favorite
lists are read through the registry interfaces and are never cached here.

Usage Example:

	snap := models.NewSnapshot(time.Now(), campaigns, dropped)
	for _, c := range snap.Active() {
	    fmt.Println(c.Game, c.EndsAt)
	}
	if w := snap.Warning(); w != nil {
	    log.Warn().Err(w).Msg("partial catalog")
	}

Thread Safety:

Snapshot is immutable after NewSnapshot returns and may be shared between
goroutines without locking. Obligation and Delta values are plain data and are
not safe for concurrent mutation.
*/
package models
