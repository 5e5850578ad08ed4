// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/metrics"
	"github.com/tomtom215/feeflow/internal/models"
)

// ErrCommandNotFound is returned when a fee command code has no record.
var ErrCommandNotFound = errors.New("fee command not found")

// CreateFeeCommand persists a fee command and its fan-out transactions in
// one atomic transaction. Either the command row and every transaction row
// become durable together, or nothing does. The command row is written
// first so it is never possible for a committed transaction row to
// reference a command that was not part of the same commit.
func (db *DB) CreateFeeCommand(ctx context.Context, cmd *models.FeeCommand, txns []*models.FeeTransaction) error {
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.createFeeCommandTx(qctx, cmd, txns)
	metrics.ObserveDBQuery("create_fee_command", start, err)
	if err != nil {
		return err
	}

	logger := logging.Ctx(ctx)
	logger.Info().
		Str("command_code", cmd.CommandCode).
		Int("transactions", len(txns)).
		Msg("Fee command and fan-out committed")
	return nil
}

func (db *DB) createFeeCommandTx(ctx context.Context, cmd *models.FeeCommand, txns []*models.FeeTransaction) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fee_commands (command_code, total_record, total_fee, created_user, created_date)
		 VALUES (?, ?, ?, ?, ?)`,
		cmd.CommandCode, cmd.TotalRecord, cmd.TotalFee, string(cmd.CreatedUser), cmd.CreatedDate,
	); err != nil {
		return fmt.Errorf("failed to insert fee command %s: %w", cmd.CommandCode, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fee_transactions
			(transaction_code, command_code, fee_amount, status, account_number, attempt, remark, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare transaction insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range txns {
		if _, err := stmt.ExecContext(ctx,
			txn.TransactionCode, txn.CommandCode, txn.FeeAmount, string(txn.Status),
			txn.AccountNumber, txn.Attempt, txn.Remark, txn.CreatedDate,
		); err != nil {
			return fmt.Errorf("failed to insert fee transaction %s: %w", txn.TransactionCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fee command %s: %w", cmd.CommandCode, err)
	}
	return nil
}

// GetFeeCommand returns the command with the given code, or
// ErrCommandNotFound.
func (db *DB) GetFeeCommand(ctx context.Context, commandCode string) (*models.FeeCommand, error) {
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	var cmd models.FeeCommand
	var createdUser string
	err := db.conn.QueryRowContext(qctx,
		`SELECT command_code, total_record, total_fee, created_user, created_date
		 FROM fee_commands WHERE command_code = ?`,
		commandCode,
	).Scan(&cmd.CommandCode, &cmd.TotalRecord, &cmd.TotalFee, &createdUser, &cmd.CreatedDate)
	metrics.ObserveDBQuery("get_fee_command", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fee command %s: %w", commandCode, err)
	}
	cmd.CreatedUser = models.Performer(createdUser)
	return &cmd, nil
}
