// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package fee

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/feeflow/internal/config"
	"github.com/tomtom215/feeflow/internal/database"
	"github.com/tomtom215/feeflow/internal/idempotency"
	"github.com/tomtom215/feeflow/internal/models"
	"github.com/tomtom215/feeflow/internal/snowflake"
)

// testNow is the frozen engine clock used across the tests.
var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

// wireTime renders t in the 14-digit request timestamp format.
func wireTime(t time.Time) string {
	return t.Format(requestTimeLayout)
}

type testEngine struct {
	*Engine
	db      *database.DB
	tracker *idempotency.MemoryTracker
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Path:         ":memory:",
		MaxMemory:    "1GB",
		QueryTimeout: 30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tracker := idempotency.NewMemory(time.UTC)
	idgen, err := snowflake.New(snowflake.NodeTypeRecord, 5)
	require.NoError(t, err)

	engine := NewEngine(db, tracker, idgen, Config{
		FreshnessWindow:    10,
		ActivationPageSize: 500,
		ScanPageSize:       500,
		Location:           time.UTC,
	})
	engine.now = func() time.Time { return testNow }

	return &testEngine{Engine: engine, db: db, tracker: tracker}
}

func freshRequest(requestID string) *CommandRequest {
	return &CommandRequest{
		RequestID:     requestID,
		RequestTime:   wireTime(testNow),
		TotalFee:      30.0,
		TotalRecord:   3,
		AccountNumber: "0011002233",
	}
}

// failingStore wraps a Store and injects errors per operation.
type failingStore struct {
	Store
	failCreate       bool
	failFetchCreated bool
	failFetch        bool
	failAdvance      bool
}

var errInjected = errors.New("injected store failure")

func (f *failingStore) FetchCreatedTransactions(ctx context.Context, commandCode string, limit int) ([]*models.FeeTransaction, error) {
	if f.failFetchCreated {
		return nil, errInjected
	}
	return f.Store.FetchCreatedTransactions(ctx, commandCode, limit)
}

func (f *failingStore) CreateFeeCommand(ctx context.Context, cmd *models.FeeCommand, txns []*models.FeeTransaction) error {
	if f.failCreate {
		return errInjected
	}
	return f.Store.CreateFeeCommand(ctx, cmd, txns)
}

func (f *failingStore) FetchChargingTransactions(ctx context.Context, maxAttempt, limit int) ([]*models.FeeTransaction, error) {
	if f.failFetch {
		return nil, errInjected
	}
	return f.Store.FetchChargingTransactions(ctx, maxAttempt, limit)
}

func (f *failingStore) AdvanceScannedTransactions(ctx context.Context, advance, stop []string, now time.Time) error {
	if f.failAdvance {
		return errInjected
	}
	return f.Store.AdvanceScannedTransactions(ctx, advance, stop, now)
}

// failMarkTracker reports every Mark as failed.
type failMarkTracker struct {
	idempotency.Tracker
}

func (f *failMarkTracker) Mark(ctx context.Context, requestID string) bool {
	return false
}
