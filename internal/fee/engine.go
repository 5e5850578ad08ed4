// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package fee implements the fee transaction lifecycle engine: idempotent
// admission of fee commands, atomic fan-out creation of their transactions,
// the paginated activation sweep, and the capped-retry scan.
package fee

import (
	"context"
	"time"

	"github.com/tomtom215/feeflow/internal/idempotency"
	"github.com/tomtom215/feeflow/internal/models"
	"github.com/tomtom215/feeflow/internal/snowflake"
)

// Store is the persistence gateway the engine drives. Implemented by
// *database.DB; tests may substitute fakes for failure injection.
type Store interface {
	CreateFeeCommand(ctx context.Context, cmd *models.FeeCommand, txns []*models.FeeTransaction) error
	FetchCreatedTransactions(ctx context.Context, commandCode string, limit int) ([]*models.FeeTransaction, error)
	ActivateTransactions(ctx context.Context, transactionCodes []string, now time.Time) (int64, error)
	FetchChargingTransactions(ctx context.Context, maxAttempt, limit int) ([]*models.FeeTransaction, error)
	AdvanceScannedTransactions(ctx context.Context, advance, stop []string, now time.Time) error
}

// Config holds the engine's admission and sweep tuning.
type Config struct {
	// FreshnessWindow is the allowed distance between the client-supplied
	// request timestamp and the server clock, in whole minutes.
	FreshnessWindow int

	// ActivationPageSize bounds each page of the activation drain.
	ActivationPageSize int

	// ScanPageSize bounds the single page processed per scan tick.
	ScanPageSize int

	// Location is the zone request timestamps are interpreted in. Must
	// match what clients encode; defaults to UTC.
	Location *time.Location
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow:    10,
		ActivationPageSize: 500,
		ScanPageSize:       500,
		Location:           time.UTC,
	}
}

// Engine is the fee transaction lifecycle engine. All state lives in the
// store and the idempotency tracker; the engine itself is stateless and
// safe for concurrent use.
type Engine struct {
	store   Store
	tracker idempotency.Tracker
	idgen   *snowflake.Generator
	cfg     Config

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine wires the engine to its collaborators.
func NewEngine(store Store, tracker idempotency.Tracker, idgen *snowflake.Generator, cfg Config) *Engine {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = 10
	}
	if cfg.ActivationPageSize <= 0 {
		cfg.ActivationPageSize = 500
	}
	if cfg.ScanPageSize <= 0 {
		cfg.ScanPageSize = 500
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		store:   store,
		tracker: tracker,
		idgen:   idgen,
		cfg:     cfg,
		now:     time.Now,
	}
}
