// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package delivery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/dropscout/internal/models"
)

// Discord message limits.
const (
	maxEmbedsPerMessage = 10
	maxContentLength    = 2000
	maxTitleLength      = 256
	maxDescLength       = 4096
	maxFieldValueLength = 1024
	maxBenefitsShown    = 6
)

// BrandColor is the default embed accent.
const BrandColor = 0x235876

var errNothingToRender = errors.New("obligation carries no campaigns")

// Renderer builds the message for an obligation.
type Renderer interface {
	Render(o models.Obligation) (*Content, error)
}

// EmbedRenderer renders one embed per campaign.
type EmbedRenderer struct {
	Color int
}

// NewEmbedRenderer returns a renderer using BrandColor.
func NewEmbedRenderer() *EmbedRenderer {
	return &EmbedRenderer{Color: BrandColor}
}

// Render implements Renderer.
func (r *EmbedRenderer) Render(o models.Obligation) (*Content, error) {
	if len(o.Campaigns) == 0 {
		return nil, models.NewFatal("render", errNothingToRender)
	}

	switch o.Reason {
	case models.ReasonNewActive:
		return &Content{
			Embeds:          []Embed{r.campaignEmbed(o.Campaigns[0], "Now Active")},
			AllowedMentions: &AllowedMentions{Parse: []string{}},
		}, nil

	case models.ReasonFavoriteMatch:
		c := o.Campaigns[0]
		mentions := make([]string, 0, len(o.Watchers))
		for _, u := range o.Watchers {
			mentions = append(mentions, "<@"+u+">")
		}
		text := fmt.Sprintf("Drops are live for a favorite game: **%s**", c.Game)
		if len(mentions) > 0 {
			text = strings.Join(mentions, " ") + " " + text
		}
		return &Content{
			Text:            TruncateContent(text, maxContentLength),
			Embeds:          []Embed{r.campaignEmbed(c, "Favorite Now Active")},
			AllowedMentions: &AllowedMentions{Parse: []string{}, Users: o.Watchers},
		}, nil

	case models.ReasonWeeklyDigest:
		return r.digest(o.Campaigns), nil

	default:
		return nil, models.NewFatal("render", fmt.Errorf("unknown reason %q", o.Reason))
	}
}

// digest renders up to maxEmbedsPerMessage embeds and lists the rest by
// game in the text.
func (r *EmbedRenderer) digest(campaigns []models.Campaign) *Content {
	shown := campaigns
	if len(shown) > maxEmbedsPerMessage {
		shown = shown[:maxEmbedsPerMessage]
	}
	embeds := make([]Embed, 0, len(shown))
	for _, c := range shown {
		embeds = append(embeds, r.campaignEmbed(c, "Ends This Week"))
	}

	noun := "campaigns end"
	if len(campaigns) == 1 {
		noun = "campaign ends"
	}
	text := fmt.Sprintf("**Weekly Drops digest:** %d active %s before Monday.", len(campaigns), noun)
	if rest := campaigns[len(shown):]; len(rest) > 0 {
		games := make([]string, 0, len(rest))
		for _, c := range rest {
			games = append(games, c.Game)
		}
		text += fmt.Sprintf("\n...and %d more: %s", len(rest), strings.Join(games, ", "))
	}

	return &Content{
		Text:            TruncateContent(text, maxContentLength),
		Embeds:          embeds,
		AllowedMentions: &AllowedMentions{Parse: []string{}},
	}
}

func (r *EmbedRenderer) campaignEmbed(c models.Campaign, label string) Embed {
	title := strings.TrimSpace(c.Game)
	if title == "" {
		title = strings.TrimSpace(c.Name)
	}
	if title == "" {
		title = "Twitch Drops"
	}

	e := Embed{
		Title:       TruncateContent(title, maxTitleLength),
		Description: TruncateContent(c.Name, maxDescLength),
		URL:         c.DirectoryURL(),
		Color:       r.Color,
	}
	if label != "" {
		e.Author = &EmbedAuthor{Name: label}
	}
	if !c.StartsAt.IsZero() {
		ts := c.StartsAt.Unix()
		e.Fields = append(e.Fields, EmbedField{Name: "Starts", Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", ts, ts), Inline: true})
	}
	if !c.EndsAt.IsZero() {
		ts := c.EndsAt.Unix()
		e.Fields = append(e.Fields, EmbedField{Name: "Ends", Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", ts, ts), Inline: true})
	}
	if rewards := c.Rewards(); len(rewards) > 0 {
		if len(rewards) > maxBenefitsShown {
			rewards = rewards[:maxBenefitsShown]
		}
		lines := make([]string, len(rewards))
		for i, name := range rewards {
			lines[i] = "• " + name
		}
		e.Fields = append(e.Fields, EmbedField{Name: "Drops", Value: TruncateContent(strings.Join(lines, "\n"), maxFieldValueLength)})
	}
	if c.BoxArtURL != "" {
		e.Thumbnail = &EmbedImage{URL: c.BoxArtURL}
	}
	return e
}
