// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/registry"
)

// Key prefixes for BadgerDB storage
const (
	guildKeyPrefix    = "guild:"
	favoriteKeyPrefix = "fav:"
)

func guildKey(guildID string) []byte {
	return []byte(guildKeyPrefix + guildID)
}

func favoritePrefix(guildID string) string {
	return favoriteKeyPrefix + guildID + ":"
}

func favoriteKey(guildID, userID string) []byte {
	return []byte(favoritePrefix(guildID) + userID)
}

// Registry is a durable registry.Registry.
type Registry struct {
	db *DB
}

var _ registry.Registry = (*Registry)(nil)

// NewRegistry creates a badger-backed registry.
func NewRegistry(db *DB) *Registry {
	return &Registry{db: db}
}

// readGuild loads a guild config inside txn. found is false for unknown guilds.
func readGuild(txn *badger.Txn, guildID string) (models.GuildConfig, bool, error) {
	item, err := txn.Get(guildKey(guildID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.DefaultGuildConfig(guildID), false, nil
	}
	if err != nil {
		return models.GuildConfig{}, false, fmt.Errorf("get guild: %w", err)
	}
	var g models.GuildConfig
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &g)
	})
	if err != nil {
		return models.GuildConfig{}, false, fmt.Errorf("decode guild: %w", err)
	}
	return g, true, nil
}

func writeGuild(txn *badger.Txn, g models.GuildConfig) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal guild: %w", err)
	}
	return txn.Set(guildKey(g.GuildID), data)
}

// updateGuild applies fn to the stored (or default) guild config.
func (r *Registry) updateGuild(guildID string, fn func(*models.GuildConfig)) error {
	return r.db.db.Update(func(txn *badger.Txn) error {
		g, _, err := readGuild(txn, guildID)
		if err != nil {
			return err
		}
		fn(&g)
		return writeGuild(txn, g)
	})
}

func readFavorites(txn *badger.Txn, guildID, userID string) ([]string, error) {
	item, err := txn.Get(favoriteKey(guildID, userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get favorites: %w", err)
	}
	var games []string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &games)
	})
	if err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return games, nil
}

func writeFavorites(txn *badger.Txn, guildID, userID string, games []string) error {
	if len(games) == 0 {
		if err := txn.Delete(favoriteKey(guildID, userID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete favorites: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(games)
	if err != nil {
		return fmt.Errorf("marshal favorites: %w", err)
	}
	return txn.Set(favoriteKey(guildID, userID), data)
}

func (r *Registry) Channel(ctx context.Context, guildID string) (string, bool, error) {
	var g models.GuildConfig
	err := r.db.db.View(func(txn *badger.Txn) error {
		var err error
		g, _, err = readGuild(txn, guildID)
		return err
	})
	if err != nil {
		return "", false, err
	}
	return g.ChannelID, g.ChannelID != "", nil
}

func (r *Registry) ListFavorites(ctx context.Context, guildID, userID string) ([]string, error) {
	var games []string
	err := r.db.db.View(func(txn *badger.Txn) error {
		var err error
		games, err = readFavorites(txn, guildID, userID)
		return err
	})
	if games == nil {
		games = []string{}
	}
	return games, err
}

func (r *Registry) AllGuildChannels(ctx context.Context) ([]models.GuildConfig, error) {
	var out []models.GuildConfig
	err := r.db.scanPrefix(guildKeyPrefix, func(key string, val []byte) error {
		var g models.GuildConfig
		if err := json.Unmarshal(val, &g); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, g)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	// Badger iterates in byte order, which already matches guild ID order.
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

func (r *Registry) GuildFavorites(ctx context.Context, guildID string) (map[string][]string, error) {
	prefix := favoritePrefix(guildID)
	out := make(map[string][]string)
	err := r.db.scanPrefix(prefix, func(key string, val []byte) error {
		var games []string
		if err := json.Unmarshal(val, &games); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out[strings.TrimPrefix(key, prefix)] = games
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list guild favorites: %w", err)
	}
	return out, nil
}

func (r *Registry) RegisterGuild(ctx context.Context, guildID string) error {
	if err := registry.ValidateIDs(guildID); err != nil {
		return err
	}
	return r.db.db.Update(func(txn *badger.Txn) error {
		g, found, err := readGuild(txn, guildID)
		if err != nil || found {
			return err
		}
		return writeGuild(txn, g)
	})
}

func (r *Registry) SetChannel(ctx context.Context, guildID, channelID string) error {
	if err := registry.ValidateIDs(guildID, channelID); err != nil {
		return err
	}
	return r.updateGuild(guildID, func(g *models.GuildConfig) { g.ChannelID = channelID })
}

func (r *Registry) ClearChannel(ctx context.Context, guildID string) error {
	if err := registry.ValidateIDs(guildID); err != nil {
		return err
	}
	return r.updateGuild(guildID, func(g *models.GuildConfig) { g.ChannelID = "" })
}

func (r *Registry) SetMode(ctx context.Context, guildID string, mode models.NotifyMode) error {
	if err := registry.ValidateIDs(guildID); err != nil {
		return err
	}
	mode, err := models.ParseNotifyMode(string(mode))
	if err != nil {
		return err
	}
	return r.updateGuild(guildID, func(g *models.GuildConfig) { g.Mode = mode })
}

func (r *Registry) SetWeeklyDigest(ctx context.Context, guildID string, enabled bool) error {
	if err := registry.ValidateIDs(guildID); err != nil {
		return err
	}
	return r.updateGuild(guildID, func(g *models.GuildConfig) { g.WeeklyDigest = enabled })
}

func (r *Registry) AddFavorite(ctx context.Context, guildID, userID, game string) (bool, error) {
	if err := registry.ValidateIDs(guildID, userID); err != nil {
		return false, err
	}
	game, err := registry.CleanGameName(game)
	if err != nil {
		return false, err
	}

	var added bool
	err = r.db.db.Update(func(txn *badger.Txn) error {
		g, found, err := readGuild(txn, guildID)
		if err != nil {
			return err
		}
		if !found {
			if err := writeGuild(txn, g); err != nil {
				return err
			}
		}
		games, err := readFavorites(txn, guildID, userID)
		if err != nil {
			return err
		}
		games, added = registry.AddToList(games, game)
		if !added {
			return nil
		}
		return writeFavorites(txn, guildID, userID, games)
	})
	return added, err
}

func (r *Registry) RemoveFavorite(ctx context.Context, guildID, userID, game string) (bool, error) {
	n, err := r.RemoveFavorites(ctx, guildID, userID, []string{game})
	return n > 0, err
}

func (r *Registry) RemoveFavorites(ctx context.Context, guildID, userID string, games []string) (int, error) {
	if err := registry.ValidateIDs(guildID, userID); err != nil {
		return 0, err
	}
	removed := 0
	err := r.db.db.Update(func(txn *badger.Txn) error {
		list, err := readFavorites(txn, guildID, userID)
		if err != nil || list == nil {
			return err
		}
		for _, game := range games {
			var ok bool
			if list, ok = registry.RemoveFromList(list, game); ok {
				removed++
			}
		}
		if removed == 0 {
			return nil
		}
		return writeFavorites(txn, guildID, userID, list)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *Registry) Watchers(ctx context.Context, guildID, game string) ([]string, error) {
	favs, err := r.GuildFavorites(ctx, guildID)
	if err != nil {
		return nil, err
	}
	var out []string
	for user, games := range favs {
		if registry.ListContains(games, game) {
			out = append(out, user)
		}
	}
	sort.Strings(out)
	return out, nil
}
