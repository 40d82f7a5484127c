// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dropscout/internal/models"
)

const snapshotKey = "snapshot:current"

// SnapshotStore persists the latest snapshot. It implements snapshot.Persister.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a snapshot persister over db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// LoadSnapshot returns the saved snapshot, or nil when none was saved.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	found, err := s.db.get(snapshotKey, func(val []byte) error {
		return json.Unmarshal(val, &snap)
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SaveSnapshot overwrites the saved snapshot.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), data)
	})
}
