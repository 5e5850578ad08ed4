// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/feeflow/internal/config"
)

func newTestTracker(t *testing.T) *BadgerTracker {
	t.Helper()
	cfg := &config.CacheConfig{InMemory: true, Timezone: "UTC"}
	tracker, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })
	return tracker
}

func TestExistsUnseenRequest(t *testing.T) {
	tracker := newTestTracker(t)
	assert.False(t, tracker.Exists(context.Background(), "req-001"))
}

func TestMarkThenExists(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	require.True(t, tracker.Mark(ctx, "req-001"))
	assert.True(t, tracker.Exists(ctx, "req-001"))
	assert.False(t, tracker.Exists(ctx, "req-002"), "marker must be per request ID")
}

func TestMarkIsIdempotent(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	require.True(t, tracker.Mark(ctx, "req-001"))
	require.True(t, tracker.Mark(ctx, "req-001"))
	assert.True(t, tracker.Exists(ctx, "req-001"))
}

func TestTimeToEndOfDay(t *testing.T) {
	tracker := newTestTracker(t)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{
			name: "morning",
			now:  time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
			want: 14*time.Hour + 59*time.Minute + 59*time.Second,
		},
		{
			name: "one second before midnight",
			now:  time.Date(2026, 3, 15, 23, 59, 58, 0, time.UTC),
			want: time.Second,
		},
		{
			name: "final second of the day floors to one second",
			now:  time.Date(2026, 3, 15, 23, 59, 59, 500000000, time.UTC),
			want: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker.now = func() time.Time { return tt.now }
			assert.Equal(t, tt.want, tracker.timeToEndOfDay())
		})
	}
}

func TestEndOfDayUsesConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	cfg := &config.CacheConfig{InMemory: true, Timezone: "Asia/Ho_Chi_Minh"}
	tracker, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = tracker.Close() }()

	// 18:00 UTC = 01:00 next day in ICT, so end-of-day is 22:59:59 later,
	// not the 5:59:59 a UTC calendar would give.
	tracker.now = func() time.Time { return time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC) }
	want := time.Date(2026, 3, 16, 23, 59, 59, 0, loc).Sub(tracker.now())
	assert.Equal(t, want, tracker.timeToEndOfDay())
}

func TestMemoryTrackerExpiry(t *testing.T) {
	tracker := NewMemory(time.UTC)
	ctx := context.Background()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	require.True(t, tracker.Mark(ctx, "req-001"))
	assert.True(t, tracker.Exists(ctx, "req-001"))

	// Still present at the end of the day.
	now = time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	assert.True(t, tracker.Exists(ctx, "req-001"))

	// Gone the next day.
	now = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	assert.False(t, tracker.Exists(ctx, "req-001"))
}

func TestMemoryTrackerConcurrentAccess(t *testing.T) {
	tracker := NewMemory(time.UTC)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 500; j++ {
				tracker.Mark(ctx, "shared")
				tracker.Exists(ctx, "shared")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.True(t, tracker.Exists(ctx, "shared"))
}
