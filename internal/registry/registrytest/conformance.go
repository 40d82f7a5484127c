// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package registrytest holds the behaviour suite every registry.Registry
// implementation must pass.
package registrytest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/registry"
)

// Run exercises reg, which must be empty, against the registry contract.
func Run(t *testing.T, newRegistry func(t *testing.T) registry.Registry) {
	t.Helper()

	t.Run("channel defaults", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		if _, ok, err := reg.Channel(ctx, "g1"); err != nil || ok {
			t.Fatalf("unknown guild Channel = ok %v, err %v; want default marker", ok, err)
		}
		if err := reg.SetChannel(ctx, "g1", "c1"); err != nil {
			t.Fatalf("SetChannel: %v", err)
		}
		if ch, ok, _ := reg.Channel(ctx, "g1"); !ok || ch != "c1" {
			t.Errorf("Channel = %q, %v; want c1, true", ch, ok)
		}
		if err := reg.ClearChannel(ctx, "g1"); err != nil {
			t.Fatalf("ClearChannel: %v", err)
		}
		if _, ok, _ := reg.Channel(ctx, "g1"); ok {
			t.Error("cleared channel should fall back to default marker")
		}
	})

	t.Run("guild configs", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		for _, g := range []string{"g2", "g1", "g3"} {
			if err := reg.RegisterGuild(ctx, g); err != nil {
				t.Fatalf("RegisterGuild(%s): %v", g, err)
			}
		}
		if err := reg.SetMode(ctx, "g2", models.ModeFavorites); err != nil {
			t.Fatalf("SetMode: %v", err)
		}
		if err := reg.SetWeeklyDigest(ctx, "g3", false); err != nil {
			t.Fatalf("SetWeeklyDigest: %v", err)
		}
		if err := reg.SetMode(ctx, "g1", models.NotifyMode("loud")); err == nil {
			t.Error("SetMode with invalid mode should fail")
		}

		got, err := reg.AllGuildChannels(ctx)
		if err != nil {
			t.Fatalf("AllGuildChannels: %v", err)
		}
		want := []models.GuildConfig{
			{GuildID: "g1", Mode: models.ModeAll, WeeklyDigest: true},
			{GuildID: "g2", Mode: models.ModeFavorites, WeeklyDigest: true},
			{GuildID: "g3", Mode: models.ModeAll, WeeklyDigest: false},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("AllGuildChannels = %+v, want %+v", got, want)
		}
	})

	t.Run("favorites are case-insensitive and deduplicated", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		added, err := reg.AddFavorite(ctx, "g1", "u1", "Valorant")
		if err != nil || !added {
			t.Fatalf("AddFavorite = %v, %v", added, err)
		}
		if added, _ := reg.AddFavorite(ctx, "g1", "u1", "  VALORANT "); added {
			t.Error("duplicate favorite under normalization should not be added")
		}
		if _, err := reg.AddFavorite(ctx, "g1", "u1", "Rust"); err != nil {
			t.Fatalf("AddFavorite Rust: %v", err)
		}

		got, _ := reg.ListFavorites(ctx, "g1", "u1")
		if !reflect.DeepEqual(got, []string{"Valorant", "Rust"}) {
			t.Errorf("ListFavorites = %v, want [Valorant Rust]", got)
		}

		// Favoriting registers the guild so the resolver sees it.
		guilds, _ := reg.AllGuildChannels(ctx)
		if len(guilds) != 1 || guilds[0].GuildID != "g1" {
			t.Errorf("AllGuildChannels after AddFavorite = %+v", guilds)
		}
	})

	t.Run("remove favorites", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		for _, g := range []string{"Valorant", "Rust", "Apex Legends"} {
			if _, err := reg.AddFavorite(ctx, "g1", "u1", g); err != nil {
				t.Fatalf("AddFavorite: %v", err)
			}
		}
		removed, err := reg.RemoveFavorite(ctx, "g1", "u1", "valorant")
		if err != nil || !removed {
			t.Fatalf("RemoveFavorite = %v, %v", removed, err)
		}
		if removed, _ := reg.RemoveFavorite(ctx, "g1", "u1", "valorant"); removed {
			t.Error("second removal should report false")
		}
		n, err := reg.RemoveFavorites(ctx, "g1", "u1", []string{"rust", "apex legends", "missing"})
		if err != nil || n != 2 {
			t.Fatalf("RemoveFavorites = %d, %v; want 2", n, err)
		}
		if got, _ := reg.ListFavorites(ctx, "g1", "u1"); len(got) != 0 {
			t.Errorf("ListFavorites after removal = %v", got)
		}
		if n, err := reg.RemoveFavorites(ctx, "g9", "u9", []string{"x"}); err != nil || n != 0 {
			t.Errorf("RemoveFavorites on unknown guild = %d, %v", n, err)
		}
	})

	t.Run("guild favorites and watchers", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		mustAdd(t, reg, "g1", "u2", "valorant")
		mustAdd(t, reg, "g1", "u1", "Valorant")
		mustAdd(t, reg, "g1", "u3", "Rust")
		mustAdd(t, reg, "g2", "u4", "Valorant")

		watchers, err := reg.Watchers(ctx, "g1", "VALORANT")
		if err != nil {
			t.Fatalf("Watchers: %v", err)
		}
		if !reflect.DeepEqual(watchers, []string{"u1", "u2"}) {
			t.Errorf("Watchers = %v, want [u1 u2]", watchers)
		}

		favs, err := reg.GuildFavorites(ctx, "g1")
		if err != nil {
			t.Fatalf("GuildFavorites: %v", err)
		}
		if len(favs) != 3 || !reflect.DeepEqual(favs["u3"], []string{"Rust"}) {
			t.Errorf("GuildFavorites = %v", favs)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		cases := []error{
			func() error { _, err := reg.AddFavorite(ctx, "", "u1", "Rust"); return err }(),
			func() error { _, err := reg.AddFavorite(ctx, "g1", "u1", "  !! "); return err }(),
			reg.SetChannel(ctx, "g1", ""),
			reg.RegisterGuild(ctx, " "),
		}
		for i, err := range cases {
			if !errors.Is(err, registry.ErrInvalidArgument) {
				t.Errorf("case %d: err = %v, want ErrInvalidArgument", i, err)
			}
		}
	})
}

func mustAdd(t *testing.T, reg registry.Registry, guild, user, game string) {
	t.Helper()
	if _, err := reg.AddFavorite(context.Background(), guild, user, game); err != nil {
		t.Fatalf("AddFavorite(%s, %s, %s): %v", guild, user, game, err)
	}
}
