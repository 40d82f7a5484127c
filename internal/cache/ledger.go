// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package cache holds the dispatch suppression ledger: a bounded, TTL-aware
// record of obligation keys that were recently delivered.
package cache

import (
	"sync"
	"time"
)

type ledgerEntry struct {
	key       string
	at        time.Time
	expiresAt time.Time
	prev      *ledgerEntry
	next      *ledgerEntry
}

// Ledger remembers keys for a fixed TTL. When full, the least recently
// recorded key is evicted first.
//
// Lookups, records and evictions are O(1): a map indexes the nodes of a
// doubly-linked list whose head is the newest entry.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*ledgerEntry
	head  *ledgerEntry
	tail  *ledgerEntry

	hits   int64
	misses int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a ledger. Non-positive arguments fall back to 10000
// entries and 24 hours.
func NewLedger(capacity int, ttl time.Duration, opts ...Option) *Ledger {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	l := &Ledger{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*ledgerEntry),
		head:     &ledgerEntry{},
		tail:     &ledgerEntry{},
	}
	l.head.next = l.tail
	l.tail.prev = l.head

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Seen reports whether key was recorded within the TTL, and when.
// Expired entries are removed on the way.
func (l *Ledger) Seen(key string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.items[key]
	if !ok {
		l.misses++
		return time.Time{}, false
	}
	if l.now().After(e.expiresAt) {
		l.unlink(e)
		l.misses++
		return time.Time{}, false
	}
	l.hits++
	return e.at, true
}

// Record stores key as delivered now, refreshing its TTL if present.
func (l *Ledger) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.items[key]; ok {
		e.at = now
		e.expiresAt = now.Add(l.ttl)
		l.detach(e)
		l.pushFront(e)
		return
	}

	e := &ledgerEntry{key: key, at: now, expiresAt: now.Add(l.ttl)}
	l.pushFront(e)
	l.items[key] = e
	for len(l.items) > l.capacity {
		l.unlink(l.tail.prev)
	}
}

// Sweep drops every expired entry and returns how many were removed.
func (l *Ledger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for e := l.tail.prev; e != l.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			l.unlink(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Stats returns lookup hit/miss counts and the current size, expired
// entries included until swept.
func (l *Ledger) Stats() (hits, misses int64, size int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits, l.misses, len(l.items)
}

// List helpers; callers hold mu.

func (l *Ledger) pushFront(e *ledgerEntry) {
	e.prev = l.head
	e.next = l.head.next
	l.head.next.prev = e
	l.head.next = e
}

func (l *Ledger) detach(e *ledgerEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (l *Ledger) unlink(e *ledgerEntry) {
	if e == l.head || e == l.tail {
		return
	}
	l.detach(e)
	delete(l.items, e.key)
}
