// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/snowflake"
)

// countingScanner records invocations and optionally blocks each scan until
// released.
type countingScanner struct {
	calls   atomic.Int64
	block   chan struct{}
	lastCID atomic.Value
}

func (c *countingScanner) Scan(ctx context.Context) error {
	c.calls.Add(1)
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		c.lastCID.Store(cid)
	}
	if c.block != nil {
		<-c.block
	}
	return nil
}

func newTestScheduler(t *testing.T, scanner Scanner, cfg Config) *Scheduler {
	t.Helper()
	logIDs, err := snowflake.New(snowflake.NodeTypeLog, 5)
	require.NoError(t, err)
	return New(scanner, logIDs, cfg)
}

func waitForCalls(t *testing.T, scanner *countingScanner, want int64) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for scanner.calls.Load() < want {
		select {
		case <-deadline:
			t.Fatalf("scanner reached %d calls, want at least %d", scanner.calls.Load(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerFiresScans(t *testing.T) {
	scanner := &countingScanner{}
	s := newTestScheduler(t, scanner, Config{Interval: 20 * time.Millisecond, Enabled: true})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	waitForCalls(t, scanner, 2)

	// Each tick runs under a fresh correlation ID.
	cid, ok := scanner.lastCID.Load().(string)
	require.True(t, ok)
	assert.NotEmpty(t, cid)
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	scanner := &countingScanner{block: make(chan struct{})}
	s := newTestScheduler(t, scanner, Config{Interval: 10 * time.Millisecond, Enabled: true})

	require.NoError(t, s.Start(context.Background()))

	// The first tick blocks inside Scan; several more ticks elapse and must
	// be skipped rather than queued.
	waitForCalls(t, scanner, 1)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(1), scanner.calls.Load())

	close(scanner.block)
	require.NoError(t, s.Stop())
}

func TestSchedulerStop(t *testing.T) {
	scanner := &countingScanner{}
	s := newTestScheduler(t, scanner, Config{Interval: 10 * time.Millisecond, Enabled: true})

	require.NoError(t, s.Start(context.Background()))
	waitForCalls(t, scanner, 1)
	require.NoError(t, s.Stop())

	// No ticks fire after Stop returns.
	settled := scanner.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, scanner.calls.Load())

	// Stopping again is a no-op.
	require.NoError(t, s.Stop())
}

func TestSchedulerContextCancel(t *testing.T) {
	scanner := &countingScanner{}
	s := newTestScheduler(t, scanner, Config{Interval: 10 * time.Millisecond, Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	waitForCalls(t, scanner, 1)
	cancel()

	time.Sleep(30 * time.Millisecond)
	settled := scanner.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, scanner.calls.Load())

	require.NoError(t, s.Stop())
}

func TestSchedulerDisabled(t *testing.T) {
	scanner := &countingScanner{}
	s := newTestScheduler(t, scanner, Config{Interval: 5 * time.Millisecond, Enabled: false})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, scanner.calls.Load())

	require.NoError(t, s.Stop())
}

func TestSchedulerDoubleStart(t *testing.T) {
	scanner := &countingScanner{}
	s := newTestScheduler(t, scanner, Config{Interval: time.Minute, Enabled: true})

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 180*time.Second, cfg.Interval)
	assert.True(t, cfg.Enabled)
}
