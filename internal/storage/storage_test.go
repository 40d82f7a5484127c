// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/dropscout/internal/models"
	"github.com/tomtom215/dropscout/internal/registry"
	"github.com/tomtom215/dropscout/internal/registry/registrytest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open without path or in-memory flag should fail")
	}
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("Open(%s): %v", dir, err)
	}
	snaps := NewSnapshotStore(db)
	want := models.NewSnapshot(time.Now(), []models.Campaign{{ID: "a", Game: "Rust", Status: models.StatusActive}}, 1)
	if err := snaps.SaveSnapshot(context.Background(), want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := db.RunGC(); err != nil {
		t.Logf("RunGC: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := NewSnapshotStore(reopened).LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got == nil || got.Len() != 1 || got.Dropped() != 1 {
		t.Errorf("reloaded snapshot = %v", got)
	}
}

func TestSnapshotStore_EmptyLoad(t *testing.T) {
	snaps := NewSnapshotStore(openTestDB(t))
	got, err := snaps.LoadSnapshot(context.Background())
	if err != nil || got != nil {
		t.Errorf("LoadSnapshot on empty db = %v, %v; want nil, nil", got, err)
	}
}

func TestSnapshotStore_Overwrite(t *testing.T) {
	snaps := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	for _, ids := range [][]string{{"a"}, {"a", "b", "c"}} {
		cs := make([]models.Campaign, len(ids))
		for i, id := range ids {
			cs[i] = models.Campaign{ID: id, Game: "G", Status: models.StatusActive}
		}
		if err := snaps.SaveSnapshot(ctx, models.NewSnapshot(time.Now(), cs, 0)); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	got, _ := snaps.LoadSnapshot(ctx)
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want the latest snapshot (3)", got.Len())
	}
}

func TestRegistry_Conformance(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) registry.Registry {
		return NewRegistry(openTestDB(t))
	})
}

func TestRegistry_UserIDWithSeparator(t *testing.T) {
	reg := NewRegistry(openTestDB(t))
	ctx := context.Background()

	if _, err := reg.AddFavorite(ctx, "g1", "user:with:colons", "Rust"); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	favs, err := reg.GuildFavorites(ctx, "g1")
	if err != nil {
		t.Fatalf("GuildFavorites: %v", err)
	}
	if _, ok := favs["user:with:colons"]; !ok {
		t.Errorf("GuildFavorites keys = %v", favs)
	}
}

func TestDB_StartStop(t *testing.T) {
	db := openTestDB(t)
	db.config.GCInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := db.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	time.Sleep(30 * time.Millisecond)
	if err := db.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := db.Stop(); err != nil {
		t.Errorf("Stop on stopped db: %v", err)
	}
}
