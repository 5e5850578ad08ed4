// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package database provides transactional access to the fee store.
//
// DuckDB is the single source of truth for command and transaction state.
// Every write that spans multiple rows (command fan-out, sweep pages) runs
// inside one explicit transaction: it commits completely or not at all, so
// no partial command/transaction set is ever visible to the sweeps.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/feeflow/internal/config"
	"github.com/tomtom215/feeflow/internal/logging"
)

// DB wraps the DuckDB connection and provides fee store access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the database at cfg.Path and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Fee store initialized")
	return db, nil
}

// createTables creates the fee tables and their sweep indexes.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS fee_commands (
			command_code TEXT PRIMARY KEY,
			total_record INTEGER NOT NULL,
			total_fee DOUBLE NOT NULL,
			created_user TEXT NOT NULL,
			created_date TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fee_transactions (
			transaction_code TEXT PRIMARY KEY,
			command_code TEXT NOT NULL,
			fee_amount DOUBLE NOT NULL,
			status TEXT NOT NULL,
			account_number TEXT,
			attempt INTEGER NOT NULL DEFAULT 0,
			remark TEXT,
			created_date TIMESTAMP NOT NULL,
			modified_date TIMESTAMP
		)`,
		// Activation sweep filter: command_code + status + attempt.
		`CREATE INDEX IF NOT EXISTS idx_fee_tx_command_status
			ON fee_transactions (command_code, status, attempt)`,
		// Retry scanner filter: status + attempt across all commands.
		`CREATE INDEX IF NOT EXISTS idx_fee_tx_status_attempt
			ON fee_transactions (status, attempt)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// queryContext derives a context bounded by the configured query timeout.
func (db *DB) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := db.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rollbackQuietly rolls back tx, logging only unexpected failures.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logging.Warn().Err(err).Msg("Transaction rollback failed")
	}
}

// closeQuietly closes the raw connection during failed initialization.
func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// placeholders returns "?, ?, ..., ?" with n markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
