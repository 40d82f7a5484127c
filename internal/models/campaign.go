// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package models

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign as reported upstream.
type CampaignStatus string

const (
	StatusActive   CampaignStatus = "active"
	StatusEnded    CampaignStatus = "ended"
	StatusUpcoming CampaignStatus = "upcoming"
)

// Valid reports whether s is one of the known statuses.
func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusActive, StatusEnded, StatusUpcoming:
		return true
	}
	return false
}

// Benefit is a single reward attached to a campaign.
type Benefit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Campaign is one Drops campaign. The ID is stable across fetches and
// identifies the same real-world campaign even when other fields change.
type Campaign struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Game      string         `json:"game"`
	GameSlug  string         `json:"game_slug,omitempty"`
	BoxArtURL string         `json:"box_art_url,omitempty"`
	Benefits  []Benefit      `json:"benefits,omitempty"`
	StartsAt  time.Time      `json:"starts_at"`
	EndsAt    time.Time      `json:"ends_at"`
	Status    CampaignStatus `json:"status"`
}

// IsActive reports whether the campaign is currently running.
func (c Campaign) IsActive() bool {
	return c.Status == StatusActive
}

// Rewards returns the benefit names in upstream order.
func (c Campaign) Rewards() []string {
	names := make([]string, 0, len(c.Benefits))
	for _, b := range c.Benefits {
		names = append(names, b.Name)
	}
	return names
}

// SameContent reports whether two records with the same ID carry identical
// alert-relevant content. Benefit order is significant.
func (c Campaign) SameContent(o Campaign) bool {
	if c.Name != o.Name || c.Game != o.Game || c.Status != o.Status {
		return false
	}
	if !c.StartsAt.Equal(o.StartsAt) || !c.EndsAt.Equal(o.EndsAt) {
		return false
	}
	if len(c.Benefits) != len(o.Benefits) {
		return false
	}
	for i := range c.Benefits {
		if c.Benefits[i].ID != o.Benefits[i].ID {
			return false
		}
	}
	return true
}

const directoryBaseURL = "https://www.twitch.tv/directory/category/"

var (
	slugStrip    = regexp.MustCompile(`'`)
	slugNonWord  = regexp.MustCompile(`\W+`)
	slugRepeated = regexp.MustCompile(`-{2,}`)
)

// Slugify converts a game display name into a Twitch category slug.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugNonWord.ReplaceAllString(s, "-")
	s = slugRepeated.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return url.PathEscape(name)
	}
	return s
}

// DirectoryURL links to the Drops-enabled channel directory for the game.
// Returns an empty string when the campaign has no game.
func (c Campaign) DirectoryURL() string {
	if c.Game == "" {
		return ""
	}
	slug := c.GameSlug
	if slug == "" {
		slug = Slugify(c.Game)
	}
	return directoryBaseURL + slug + "?filter=drops"
}
