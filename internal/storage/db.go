// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package storage provides BadgerDB-backed persistence for the last catalog
// snapshot and the subscription registry.
//
// Key layout:
//
//	snapshot:current        -> JSON models.Snapshot
//	guild:<guild>           -> JSON models.GuildConfig
//	fav:<guild>:<user>      -> JSON []string
//
// Values are encoded with goccy/go-json. No multi-key transactional guarantees
// are required by callers; each operation runs in its own badger transaction.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/logging"
)

// Config holds BadgerDB settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM (tests and throwaway runs).
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// GCInterval is how often the value log is garbage collected.
	// Default: 10m
	GCInterval time.Duration
	// GCRatio is the discard ratio passed to RunValueLogGC.
	// Default: 0.5
	GCRatio float64
}

// DB wraps a badger database.
type DB struct {
	db     *badger.DB
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Open opens (or creates) the database.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("storage path is required unless running in memory")
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Storage opened")

	return &DB{
		db:     db,
		config: cfg,
		logger: logging.WithComponent("storage"),
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Badger exposes the underlying handle.
func (d *DB) Badger() *badger.DB {
	return d.db
}

// RunGC rewrites value log files until no more space can be reclaimed.
func (d *DB) RunGC() error {
	if d.config.InMemory {
		return nil
	}
	for {
		err := d.db.RunValueLogGC(d.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Start begins periodic value log GC in the background.
func (d *DB) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("storage GC already running")
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	go d.gcLoop(ctx, d.stopCh, d.doneCh)
	return nil
}

// Stop halts the GC loop and waits for it to exit.
func (d *DB) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	done := d.doneCh
	d.mu.Unlock()
	<-done
	return nil
}

func (d *DB) gcLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.config.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := d.RunGC(); err != nil {
				d.logger.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}
}

// get reads key into dst. found is false when the key does not exist.
func (d *DB) get(key string, decode func([]byte) error) (found bool, err error) {
	err = d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(decode)
	})
	return found, err
}

// scanPrefix calls fn for every key with prefix, in key order.
func (d *DB) scanPrefix(prefix string, fn func(key string, val []byte) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error { return fn(key, val) }); err != nil {
				return err
			}
		}
		return nil
	})
}
