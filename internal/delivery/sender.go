// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package delivery turns notification obligations into chat messages.
//
// The Manager drives each obligation through a small state machine
// (pending, sending, retrying, delivered, dropped), admitting every send
// through a Gate that bounds global and per-guild concurrency and rate. A
// Renderer builds the message and a Sender transports it:
//   - DiscordSender: Discord REST API with system channel fallback
//   - LogSender: dry-run transport that only logs
//
// Senders classify failures with models.TransientError (retry) and
// models.FatalError (drop). Credentials are never logged.
package delivery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/models"
)

// Sender delivers rendered content to a destination. It returns nil,
// a *models.TransientError or a *models.FatalError.
type Sender interface {
	Send(ctx context.Context, dest models.Destination, content *Content) error
}

// Content is one chat message.
type Content struct {
	Text            string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// Embed is a Discord embed object.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedAuthor is the small header line above an embed title.
type EmbedAuthor struct {
	Name string `json:"name"`
}

// EmbedImage references an image by URL.
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedField is a name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// AllowedMentions restricts who a message may ping. An empty Parse list with
// explicit Users pings exactly those users.
type AllowedMentions struct {
	Parse []string `json:"parse"`
	Users []string `json:"users,omitempty"`
}

// LogSender is a dry-run transport: it logs each message and reports success.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a dry-run sender.
func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "dry-run-sender").Logger()}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, dest models.Destination, content *Content) error {
	titles := make([]string, 0, len(content.Embeds))
	for _, e := range content.Embeds {
		titles = append(titles, e.Title)
	}
	s.logger.Info().
		Str("destination", dest.String()).
		Str("text", content.Text).
		Strs("embeds", titles).
		Msg("Dry run: message not sent")
	return nil
}

// TruncateContent shortens content to maxLen bytes with an ellipsis, never
// splitting a UTF-8 sequence.
func TruncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return cutRunes(content, maxLen)
	}
	return cutRunes(content, maxLen-3) + "..."
}

func cutRunes(s string, n int) string {
	end := 0
	for i := range s {
		if i > n {
			break
		}
		end = i
	}
	if len(s) <= n {
		return s
	}
	return s[:end]
}
