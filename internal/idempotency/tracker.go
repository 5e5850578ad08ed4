// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package idempotency detects duplicate client requests by tracking
// request IDs in a BadgerDB store with absolute-time expiry.
//
// A marker is written when a request is first admitted and expires at
// 23:59:59 of the current day in the configured time zone, so the store
// never holds more than one day of request volume regardless of traffic.
//
// The marker store is a dedup hint, not the source of truth: every
// operation fails open. A store error on Exists reports "not seen" and a
// failed Mark degrades dedup protection instead of blocking admission.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/feeflow/internal/config"
	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/metrics"
)

// markerKeyPrefix namespaces request markers in the Badger keyspace.
const markerKeyPrefix = "reqid:"

// Tracker answers "has this request been seen" and records new requests.
type Tracker interface {
	// Exists reports whether a marker for requestID is currently present.
	// Store errors are logged and reported as false.
	Exists(ctx context.Context, requestID string) bool

	// Mark records requestID with expiry at end of the current day.
	// Returns whether the write succeeded; failure is logged, never fatal.
	Mark(ctx context.Context, requestID string) bool

	// Close releases the underlying store.
	Close() error
}

// BadgerTracker is the production Tracker backed by BadgerDB.
type BadgerTracker struct {
	db  *badger.DB
	loc *time.Location

	// now is swappable for tests.
	now func() time.Time
}

// New opens the Badger store described by cfg and returns a tracker on it.
func New(cfg *config.CacheConfig) (*BadgerTracker, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open idempotency store: %w", err)
	}

	return &BadgerTracker{
		db:  db,
		loc: cfg.MarkerLocation(),
		now: time.Now,
	}, nil
}

// NewWithDB wraps an already-open Badger handle. The caller keeps ownership
// of the handle; Close is a no-op path for it here.
func NewWithDB(db *badger.DB, loc *time.Location) *BadgerTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &BadgerTracker{db: db, loc: loc, now: time.Now}
}

// Exists implements Tracker.
func (t *BadgerTracker) Exists(ctx context.Context, requestID string) bool {
	err := t.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(markerKeyPrefix + requestID))
		return err
	})
	switch {
	case err == nil:
		metrics.MarkerOperationsTotal.WithLabelValues("check", "hit").Inc()
		return true
	case errors.Is(err, badger.ErrKeyNotFound):
		metrics.MarkerOperationsTotal.WithLabelValues("check", "miss").Inc()
		return false
	default:
		metrics.MarkerOperationsTotal.WithLabelValues("check", "error").Inc()
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).
			Str("request_id", requestID).
			Msg("Idempotency check failed, treating request as unseen")
		return false
	}
}

// Mark implements Tracker. The marker carries no payload; only its
// presence matters.
func (t *BadgerTracker) Mark(ctx context.Context, requestID string) bool {
	ttl := t.timeToEndOfDay()
	err := t.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(markerKeyPrefix+requestID), nil).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		metrics.MarkerOperationsTotal.WithLabelValues("mark", "error").Inc()
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).
			Str("request_id", requestID).
			Msg("Failed to write idempotency marker, dedup protection degraded")
		return false
	}
	metrics.MarkerOperationsTotal.WithLabelValues("mark", "ok").Inc()
	return true
}

// Close implements Tracker.
func (t *BadgerTracker) Close() error {
	return t.db.Close()
}

// timeToEndOfDay returns the duration until 23:59:59 of the current day in
// the tracker's zone. Expiry is anchored to the wall clock, not the write
// time, so two markers written at different times on the same day expire
// together.
func (t *BadgerTracker) timeToEndOfDay() time.Duration {
	now := t.now().In(t.loc)
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, t.loc)
	ttl := endOfDay.Sub(now)
	if ttl < time.Second {
		// Markers written in the final second of the day still need to
		// exist long enough to be observed.
		ttl = time.Second
	}
	return ttl
}

// MemoryTracker is an in-process Tracker for tests and cache-disabled
// deployments. Expiry follows the same end-of-day rule.
type MemoryTracker struct {
	mu      sync.Mutex
	markers map[string]time.Time
	loc     *time.Location
	now     func() time.Time
}

// NewMemory creates an empty in-memory tracker using the given zone.
func NewMemory(loc *time.Location) *MemoryTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryTracker{
		markers: make(map[string]time.Time),
		loc:     loc,
		now:     time.Now,
	}
}

// Exists implements Tracker.
func (m *MemoryTracker) Exists(_ context.Context, requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.markers[requestID]
	if !ok {
		return false
	}
	if m.now().After(expiry) {
		delete(m.markers, requestID)
		return false
	}
	return true
}

// Mark implements Tracker.
func (m *MemoryTracker) Mark(_ context.Context, requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().In(m.loc)
	m.markers[requestID] = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, m.loc)
	return true
}

// Close implements Tracker.
func (m *MemoryTracker) Close() error {
	return nil
}
