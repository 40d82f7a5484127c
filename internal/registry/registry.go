// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package registry defines the subscription registry consumed by the match
// resolver and mutated by the command layer.
//
// The registry maps guilds to their notification configuration and
// (guild, user) pairs to favorite game lists. Readers must treat it as
// eventually consistent: a change made while a cycle is resolving may or may
// not be visible to that cycle, and the next cycle picks it up.
//
// Two implementations exist: Memory (this package, for tests and
// storage-less runs) and the badger-backed storage.Registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tomtom215/dropscout/internal/fuzzy"
	"github.com/tomtom215/dropscout/internal/models"
)

// MaxGameNameLength bounds favorite entries.
const MaxGameNameLength = 100

// ErrInvalidArgument is returned for empty identifiers or unusable game names.
var ErrInvalidArgument = errors.New("invalid registry argument")

// Reader is the read-only view the resolver consumes.
type Reader interface {
	// Channel returns the configured channel. ok is false when the guild
	// uses the default destination.
	Channel(ctx context.Context, guildID string) (channelID string, ok bool, err error)
	ListFavorites(ctx context.Context, guildID, userID string) ([]string, error)
	// AllGuildChannels returns every known guild configuration ordered by guild ID.
	AllGuildChannels(ctx context.Context) ([]models.GuildConfig, error)
	// GuildFavorites returns user ID -> favorite games for one guild.
	GuildFavorites(ctx context.Context, guildID string) (map[string][]string, error)
}

// Writer is the mutation surface exposed to the command layer.
type Writer interface {
	RegisterGuild(ctx context.Context, guildID string) error
	SetChannel(ctx context.Context, guildID, channelID string) error
	ClearChannel(ctx context.Context, guildID string) error
	SetMode(ctx context.Context, guildID string, mode models.NotifyMode) error
	SetWeeklyDigest(ctx context.Context, guildID string, enabled bool) error
	AddFavorite(ctx context.Context, guildID, userID, game string) (bool, error)
	RemoveFavorite(ctx context.Context, guildID, userID, game string) (bool, error)
	RemoveFavorites(ctx context.Context, guildID, userID string, games []string) (int, error)
	// Watchers returns the users in a guild who favorited game, sorted.
	Watchers(ctx context.Context, guildID, game string) ([]string, error)
}

// Registry combines both views.
type Registry interface {
	Reader
	Writer
}

// ValidateIDs rejects empty identifiers.
func ValidateIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty identifier", ErrInvalidArgument)
		}
	}
	return nil
}

// CleanGameName trims a favorite and checks it is usable.
func CleanGameName(game string) (string, error) {
	game = strings.TrimSpace(game)
	if fuzzy.Normalize(game) == "" {
		return "", fmt.Errorf("%w: game name %q has no letters or digits", ErrInvalidArgument, game)
	}
	if utf8.RuneCountInString(game) > MaxGameNameLength {
		return "", fmt.Errorf("%w: game name longer than %d characters", ErrInvalidArgument, MaxGameNameLength)
	}
	return game, nil
}

// AddToList appends game unless an entry with the same normalized form exists.
// The first-seen display form is kept.
func AddToList(list []string, game string) ([]string, bool) {
	key := fuzzy.Normalize(game)
	for _, g := range list {
		if fuzzy.Normalize(g) == key {
			return list, false
		}
	}
	return append(list, game), true
}

// RemoveFromList drops the entry matching game's normalized form.
func RemoveFromList(list []string, game string) ([]string, bool) {
	key := fuzzy.Normalize(game)
	for i, g := range list {
		if fuzzy.Normalize(g) == key {
			out := make([]string, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}

// ListContains reports whether list holds game under normalization.
func ListContains(list []string, game string) bool {
	key := fuzzy.Normalize(game)
	for _, g := range list {
		if fuzzy.Normalize(g) == key {
			return true
		}
	}
	return false
}
