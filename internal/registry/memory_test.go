// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/tomtom215/dropscout/internal/registry"
	"github.com/tomtom215/dropscout/internal/registry/registrytest"
)

func TestMemory_Conformance(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) registry.Registry {
		return registry.NewMemory()
	})
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	reg := registry.NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = reg.AddFavorite(ctx, "g1", "u1", "Rust")
				_, _ = reg.ListFavorites(ctx, "g1", "u1")
				_, _ = reg.AllGuildChannels(ctx)
				_, _ = reg.RemoveFavorite(ctx, "g1", "u1", "rust")
			}
		}(i)
	}
	wg.Wait()
}

func TestListHelpers(t *testing.T) {
	list, added := registry.AddToList(nil, "Pokémon Scarlet")
	if !added {
		t.Fatal("first add should succeed")
	}
	if _, added := registry.AddToList(list, "pokemon_scarlet"); added {
		t.Error("accent and separator variants should dedupe")
	}
	if !registry.ListContains(list, "POKEMON SCARLET") {
		t.Error("ListContains should normalize")
	}
	list, removed := registry.RemoveFromList(list, "pokemon scarlet")
	if !removed || len(list) != 0 {
		t.Errorf("RemoveFromList = %v, %v", list, removed)
	}
}
