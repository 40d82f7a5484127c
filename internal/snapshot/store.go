// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package snapshot holds the current catalog snapshot.
//
// Snapshots are immutable and published through a single atomic pointer, so
// readers never observe a half-applied swap. Swap hands the replaced
// snapshot back to its caller, which is the only place the previous
// snapshot is needed. Only the poll cycle calls Swap.
//
// An optional Persister makes the current snapshot durable so the first diff
// after a restart compares against what was last seen rather than against nothing.
package snapshot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/models"
)

// Persister stores the most recent snapshot across restarts.
type Persister interface {
	// LoadSnapshot returns the last saved snapshot, or nil when none exists.
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
}

// Store publishes the current snapshot.
type Store struct {
	current   atomic.Pointer[models.Snapshot]
	persister Persister
	logger    zerolog.Logger
}

// NewStore creates an empty store. persister may be nil for a memory-only store.
func NewStore(persister Persister, logger *zerolog.Logger) *Store {
	return &Store{
		persister: persister,
		logger:    logger.With().Str("component", "snapshot_store").Logger(),
	}
}

// Restore loads the persisted snapshot as the current one. It is a no-op
// without a persister or when nothing has been saved yet.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if snap == nil {
		s.logger.Info().Msg("No persisted snapshot; first poll will establish a baseline")
		return nil
	}
	s.current.Store(snap)
	s.logger.Info().
		Int("campaigns", snap.Len()).
		Time("fetched_at", snap.FetchedAt()).
		Msg("Restored persisted snapshot")
	return nil
}

// Current returns the latest snapshot, or nil before the first fetch.
func (s *Store) Current() *models.Snapshot {
	return s.current.Load()
}

// Swap publishes next as current and returns the snapshot it replaced.
// The in-memory swap always happens; a persistence failure is returned so the
// caller can record it, but it does not roll the swap back.
func (s *Store) Swap(ctx context.Context, next *models.Snapshot) (*models.Snapshot, error) {
	if next == nil {
		return nil, fmt.Errorf("swap: nil snapshot")
	}
	old := s.current.Swap(next)

	if s.persister != nil {
		if err := s.persister.SaveSnapshot(ctx, next); err != nil {
			return old, fmt.Errorf("persist snapshot: %w", err)
		}
	}
	return old, nil
}
