// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/dropscout/internal/models"
)

// Memory is an in-process Registry guarded by a RWMutex.
type Memory struct {
	mu        sync.RWMutex
	guilds    map[string]models.GuildConfig
	favorites map[string]map[string][]string // guild -> user -> games
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{
		guilds:    make(map[string]models.GuildConfig),
		favorites: make(map[string]map[string][]string),
	}
}

var _ Registry = (*Memory)(nil)

// guildLocked returns the guild config, creating the default one. Caller holds mu.
func (m *Memory) guildLocked(guildID string) models.GuildConfig {
	g, ok := m.guilds[guildID]
	if !ok {
		g = models.DefaultGuildConfig(guildID)
		m.guilds[guildID] = g
	}
	return g
}

func (m *Memory) Channel(ctx context.Context, guildID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guilds[guildID]
	if !ok || g.ChannelID == "" {
		return "", false, nil
	}
	return g.ChannelID, true, nil
}

func (m *Memory) ListFavorites(ctx context.Context, guildID, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	games := m.favorites[guildID][userID]
	out := make([]string, len(games))
	copy(out, games)
	return out, nil
}

func (m *Memory) AllGuildChannels(ctx context.Context) ([]models.GuildConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.GuildConfig, 0, len(m.guilds))
	for _, g := range m.guilds {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

func (m *Memory) GuildFavorites(ctx context.Context, guildID string) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.favorites[guildID]))
	for user, games := range m.favorites[guildID] {
		out[user] = append([]string(nil), games...)
	}
	return out, nil
}

func (m *Memory) RegisterGuild(ctx context.Context, guildID string) error {
	if err := ValidateIDs(guildID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guildLocked(guildID)
	return nil
}

func (m *Memory) SetChannel(ctx context.Context, guildID, channelID string) error {
	if err := ValidateIDs(guildID, channelID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.guildLocked(guildID)
	g.ChannelID = channelID
	m.guilds[guildID] = g
	return nil
}

func (m *Memory) ClearChannel(ctx context.Context, guildID string) error {
	if err := ValidateIDs(guildID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.guildLocked(guildID)
	g.ChannelID = ""
	m.guilds[guildID] = g
	return nil
}

func (m *Memory) SetMode(ctx context.Context, guildID string, mode models.NotifyMode) error {
	if err := ValidateIDs(guildID); err != nil {
		return err
	}
	mode, err := models.ParseNotifyMode(string(mode))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.guildLocked(guildID)
	g.Mode = mode
	m.guilds[guildID] = g
	return nil
}

func (m *Memory) SetWeeklyDigest(ctx context.Context, guildID string, enabled bool) error {
	if err := ValidateIDs(guildID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.guildLocked(guildID)
	g.WeeklyDigest = enabled
	m.guilds[guildID] = g
	return nil
}

func (m *Memory) AddFavorite(ctx context.Context, guildID, userID, game string) (bool, error) {
	if err := ValidateIDs(guildID, userID); err != nil {
		return false, err
	}
	game, err := CleanGameName(game)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guildLocked(guildID)
	users, ok := m.favorites[guildID]
	if !ok {
		users = make(map[string][]string)
		m.favorites[guildID] = users
	}
	list, added := AddToList(users[userID], game)
	users[userID] = list
	return added, nil
}

func (m *Memory) RemoveFavorite(ctx context.Context, guildID, userID, game string) (bool, error) {
	n, err := m.RemoveFavorites(ctx, guildID, userID, []string{game})
	return n > 0, err
}

func (m *Memory) RemoveFavorites(ctx context.Context, guildID, userID string, games []string) (int, error) {
	if err := ValidateIDs(guildID, userID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.favorites[guildID]
	list := users[userID]
	removed := 0
	for _, game := range games {
		var ok bool
		if list, ok = RemoveFromList(list, game); ok {
			removed++
		}
	}
	if users == nil {
		return 0, nil
	}
	if len(list) == 0 {
		delete(users, userID)
	} else {
		users[userID] = list
	}
	return removed, nil
}

func (m *Memory) Watchers(ctx context.Context, guildID, game string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for user, games := range m.favorites[guildID] {
		if ListContains(games, game) {
			out = append(out, user)
		}
	}
	sort.Strings(out)
	return out, nil
}
