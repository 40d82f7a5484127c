// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package models

import "fmt"

// NotifyMode selects which obligations a guild receives for newly active campaigns.
type NotifyMode string

const (
	// ModeAll delivers both new-active and favorite-match notifications,
	// so a favorited game produces two messages in the same guild.
	ModeAll NotifyMode = "all"
	// ModeBroadcast delivers new-active notifications only.
	ModeBroadcast NotifyMode = "broadcast"
	// ModeFavorites delivers favorite-match notifications only.
	ModeFavorites NotifyMode = "favorites"
	// ModeOff mutes the guild entirely, digest included.
	ModeOff NotifyMode = "off"
)

// ParseNotifyMode validates a mode string. Empty selects ModeAll.
func ParseNotifyMode(s string) (NotifyMode, error) {
	switch m := NotifyMode(s); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeBroadcast, ModeFavorites, ModeOff:
		return m, nil
	default:
		return "", fmt.Errorf("invalid notify mode %q (must be all, broadcast, favorites or off)", s)
	}
}

// Broadcasts reports whether the mode receives new-active obligations.
func (m NotifyMode) Broadcasts() bool {
	return m == ModeAll || m == ModeBroadcast || m == ""
}

// MatchesFavorites reports whether the mode receives favorite-match obligations.
func (m NotifyMode) MatchesFavorites() bool {
	return m == ModeAll || m == ModeFavorites || m == ""
}

// GuildConfig is the notification configuration of one guild.
type GuildConfig struct {
	GuildID string `json:"guild_id"`
	// ChannelID is empty when the guild has not picked a channel; delivery
	// then falls back to the guild's default (system) channel.
	ChannelID    string     `json:"channel_id,omitempty"`
	Mode         NotifyMode `json:"mode"`
	WeeklyDigest bool       `json:"weekly_digest"`
}

// DefaultGuildConfig returns the configuration applied to a newly seen guild.
func DefaultGuildConfig(guildID string) GuildConfig {
	return GuildConfig{
		GuildID:      guildID,
		Mode:         ModeAll,
		WeeklyDigest: true,
	}
}

// Destination returns where notifications for this guild are sent.
func (g GuildConfig) Destination() Destination {
	return Destination{GuildID: g.GuildID, ChannelID: g.ChannelID}
}
