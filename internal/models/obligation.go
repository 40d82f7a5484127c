// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package models

// Reason explains why a notification is owed.
type Reason string

const (
	ReasonNewActive     Reason = "new-active"
	ReasonFavoriteMatch Reason = "favorite-match"
	ReasonWeeklyDigest  Reason = "weekly-digest"
)

// Destination identifies a delivery target. An empty ChannelID is the
// default marker: the transport resolves the guild's default channel at send time.
type Destination struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id,omitempty"`
}

// IsDefault reports whether the destination relies on the guild default channel.
func (d Destination) IsDefault() bool {
	return d.ChannelID == ""
}

// String renders the destination for logs and dedup keys.
func (d Destination) String() string {
	if d.ChannelID == "" {
		return d.GuildID + "/default"
	}
	return d.GuildID + "/" + d.ChannelID
}

// Obligation is one notification owed to a destination.
type Obligation struct {
	Destination Destination `json:"destination"`
	// CampaignID is empty for weekly digests, which batch many campaigns.
	CampaignID string     `json:"campaign_id,omitempty"`
	Reason     Reason     `json:"reason"`
	Campaigns  []Campaign `json:"campaigns"`
	// Watchers lists the users whose favorites matched (favorite-match only).
	Watchers []string `json:"watchers,omitempty"`
}

// ObligationKey is the deduplication identity of an obligation.
type ObligationKey struct {
	Destination Destination
	CampaignID  string
	Reason      Reason
}

// String renders the key for logs and the cross-cycle suppression ledger.
func (k ObligationKey) String() string {
	return k.Destination.String() + "|" + k.CampaignID + "|" + string(k.Reason)
}

// Key returns the (destination, campaign, reason) identity.
func (o Obligation) Key() ObligationKey {
	return ObligationKey{Destination: o.Destination, CampaignID: o.CampaignID, Reason: o.Reason}
}

// Less orders obligations by guild, channel, campaign and reason.
func (o Obligation) Less(other Obligation) bool {
	a, b := o.Destination, other.Destination
	if a.GuildID != b.GuildID {
		return a.GuildID < b.GuildID
	}
	if a.ChannelID != b.ChannelID {
		return a.ChannelID < b.ChannelID
	}
	if o.CampaignID != other.CampaignID {
		return o.CampaignID < other.CampaignID
	}
	return o.Reason < other.Reason
}
