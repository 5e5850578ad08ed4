// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package scheduler drives the retry scanner on a fixed period.
//
// One timer, one logical scan in flight: if a scan is still running when
// the next tick fires, that tick is skipped rather than queued, so a
// transaction's attempt counter can never be advanced twice in one period.
// The first scan fires after one full period, matching fixed-rate
// scheduling with an initial delay of one period.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/metrics"
	"github.com/tomtom215/feeflow/internal/snowflake"
)

// Scanner is the single operation the scheduler drives. Implemented by
// *fee.Engine.
type Scanner interface {
	Scan(ctx context.Context) error
}

// Config holds the scan schedule.
type Config struct {
	// Interval is the fixed period between scan ticks.
	Interval time.Duration

	// Enabled controls whether ticks fire at all.
	Enabled bool
}

// DefaultConfig returns the reference schedule.
func DefaultConfig() Config {
	return Config{
		Interval: 180 * time.Second,
		Enabled:  true,
	}
}

// Scheduler invokes the Scanner on a fixed period.
type Scheduler struct {
	scanner Scanner
	logIDs  *snowflake.Generator
	logger  zerolog.Logger
	config  Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// scanning guards against overlapping scans.
	scanning sync.Mutex
}

// New creates a scan scheduler. logIDs tags each tick's context with a
// fresh correlation ID.
func New(scanner Scanner, logIDs *snowflake.Generator, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 180 * time.Second
	}
	return &Scheduler{
		scanner: scanner,
		logIDs:  logIDs,
		logger:  logging.Logger().With().Str("component", "scan-scheduler").Logger(),
		config:  config,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scan scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Scan scheduler disabled")
		go func() {
			defer close(s.doneCh)
			<-s.stopCh
		}()
		return nil
	}

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Msg("Starting scan scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the scheduler loop and waits for it to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)
	defer s.waitForScan()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scan scheduler context canceled")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("Scan scheduler stopped")
			return
		case <-ticker.C:
			go s.tick(ctx)
		}
	}
}

// waitForScan blocks until any in-flight scan finishes.
func (s *Scheduler) waitForScan() {
	s.scanning.Lock()
	s.scanning.Unlock() //nolint:staticcheck // the acquisition is the wait
}

// tick runs one scan unless the previous one is still in flight.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.scanning.TryLock() {
		metrics.ScanTicksTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn().Msg("Previous scan still running, skipping tick")
		return
	}
	defer s.scanning.Unlock()

	tickCtx := logging.ContextWithCorrelationID(ctx, s.logIDs.Next())
	if err := s.scanner.Scan(tickCtx); err != nil {
		// Already logged with context by the scanner; the page is
		// retried on the next tick.
		s.logger.Debug().Err(err).Msg("Scan tick returned error")
	}
}
