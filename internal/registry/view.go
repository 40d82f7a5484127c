// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package registry

import (
	"context"
	"fmt"

	"github.com/tomtom215/dropscout/internal/models"
)

// View is a point-in-time copy of every guild configuration and favorite
// list. It implements Reader without touching the backing store, so a
// resolution pass over a View cannot fail on a storage error.
type View struct {
	guilds    []models.GuildConfig
	byID      map[string]models.GuildConfig
	favorites map[string]map[string][]string
}

// LoadView reads the whole registry from r.
func LoadView(ctx context.Context, r Reader) (*View, error) {
	guilds, err := r.AllGuildChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}

	v := &View{
		guilds:    guilds,
		byID:      make(map[string]models.GuildConfig, len(guilds)),
		favorites: make(map[string]map[string][]string, len(guilds)),
	}
	for _, g := range guilds {
		v.byID[g.GuildID] = g
		favs, err := r.GuildFavorites(ctx, g.GuildID)
		if err != nil {
			return nil, fmt.Errorf("guild %s favorites: %w", g.GuildID, err)
		}
		v.favorites[g.GuildID] = favs
	}
	return v, nil
}

// Channel implements Reader.
func (v *View) Channel(_ context.Context, guildID string) (string, bool, error) {
	g, ok := v.byID[guildID]
	if !ok || g.ChannelID == "" {
		return "", false, nil
	}
	return g.ChannelID, true, nil
}

// ListFavorites implements Reader.
func (v *View) ListFavorites(_ context.Context, guildID, userID string) ([]string, error) {
	return append([]string(nil), v.favorites[guildID][userID]...), nil
}

// AllGuildChannels implements Reader.
func (v *View) AllGuildChannels(context.Context) ([]models.GuildConfig, error) {
	return append([]models.GuildConfig(nil), v.guilds...), nil
}

// GuildFavorites implements Reader.
func (v *View) GuildFavorites(_ context.Context, guildID string) (map[string][]string, error) {
	src := v.favorites[guildID]
	out := make(map[string][]string, len(src))
	for user, games := range src {
		out[user] = append([]string(nil), games...)
	}
	return out, nil
}

var _ Reader = (*View)(nil)
