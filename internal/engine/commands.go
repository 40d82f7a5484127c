// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package engine

import (
	"context"

	"github.com/tomtom215/dropscout/internal/models"
)

// Registry commands. Mutations register the guild first so a guild's first
// command also gives it the default configuration.

// AddFavorite adds game to a user's favorites. It reports false when an
// equivalent name is already listed.
func (e *Engine) AddFavorite(ctx context.Context, guildID, userID, game string) (bool, error) {
	if err := e.registry.RegisterGuild(ctx, guildID); err != nil {
		return false, err
	}
	return e.registry.AddFavorite(ctx, guildID, userID, game)
}

// RemoveFavorite removes game from a user's favorites and reports whether it was listed.
func (e *Engine) RemoveFavorite(ctx context.Context, guildID, userID, game string) (bool, error) {
	return e.registry.RemoveFavorite(ctx, guildID, userID, game)
}

// RemoveFavorites removes several games at once and returns how many were listed.
func (e *Engine) RemoveFavorites(ctx context.Context, guildID, userID string, games []string) (int, error) {
	return e.registry.RemoveFavorites(ctx, guildID, userID, games)
}

// ListFavorites returns a user's favorites in insertion order.
func (e *Engine) ListFavorites(ctx context.Context, guildID, userID string) ([]string, error) {
	return e.registry.ListFavorites(ctx, guildID, userID)
}

// SetChannel sets the guild's notification channel. An empty channelID
// reverts the guild to the default destination.
func (e *Engine) SetChannel(ctx context.Context, guildID, channelID string) error {
	if err := e.registry.RegisterGuild(ctx, guildID); err != nil {
		return err
	}
	if channelID == "" {
		return e.registry.ClearChannel(ctx, guildID)
	}
	return e.registry.SetChannel(ctx, guildID, channelID)
}

// SetMode sets which notifications the guild receives.
func (e *Engine) SetMode(ctx context.Context, guildID string, mode models.NotifyMode) error {
	if err := e.registry.RegisterGuild(ctx, guildID); err != nil {
		return err
	}
	return e.registry.SetMode(ctx, guildID, mode)
}

// SetWeeklyDigest turns the guild's weekly digest on or off.
func (e *Engine) SetWeeklyDigest(ctx context.Context, guildID string, enabled bool) error {
	if err := e.registry.RegisterGuild(ctx, guildID); err != nil {
		return err
	}
	return e.registry.SetWeeklyDigest(ctx, guildID, enabled)
}

// Watchers returns the users in a guild whose favorites include game, sorted.
func (e *Engine) Watchers(ctx context.Context, guildID, game string) ([]string, error) {
	return e.registry.Watchers(ctx, guildID, game)
}
