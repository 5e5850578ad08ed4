// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/feeflow/internal/metrics"
	"github.com/tomtom215/feeflow/internal/models"
)

// FetchCreatedTransactions returns one page of transactions for the given
// command that are still in the initial state (status CREATED, attempt 0).
// Ordered by transaction code so repeated fetches are deterministic.
func (db *DB) FetchCreatedTransactions(ctx context.Context, commandCode string, limit int) ([]*models.FeeTransaction, error) {
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx,
		`SELECT transaction_code, command_code, fee_amount, status, account_number,
		        attempt, remark, created_date, modified_date
		 FROM fee_transactions
		 WHERE command_code = ? AND status = ? AND attempt = 0
		 ORDER BY transaction_code
		 LIMIT ?`,
		commandCode, string(models.StatusCreated), limit)
	metrics.ObserveDBQuery("fetch_created_transactions", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query created transactions for %s: %w", commandCode, err)
	}
	defer func() { _ = rows.Close() }()

	return scanFeeTransactions(rows)
}

// ActivateTransactions moves one fetched page into charging: each row gets
// status CHARGING, attempt 1, and the given modification time, in a single
// transaction. The status guard in the WHERE clause makes a racing second
// sweep harmless: rows another invocation already advanced are skipped, not
// advanced twice. Returns the number of rows transitioned.
func (db *DB) ActivateTransactions(ctx context.Context, transactionCodes []string, now time.Time) (int64, error) {
	if len(transactionCodes) == 0 {
		return 0, nil
	}

	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	affected, err := db.activateTransactionsTx(qctx, transactionCodes, now)
	metrics.ObserveDBQuery("activate_transactions", start, err)
	return affected, err
}

func (db *DB) activateTransactionsTx(ctx context.Context, transactionCodes []string, now time.Time) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin activation transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	args := make([]any, 0, len(transactionCodes)+3)
	args = append(args, string(models.StatusCharging), now, string(models.StatusCreated))
	for _, code := range transactionCodes {
		args = append(args, code)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE fee_transactions
		 SET status = ?, attempt = 1, modified_date = ?
		 WHERE status = ? AND transaction_code IN (`+placeholders(len(transactionCodes))+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to activate transaction page: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read activation row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit activation page: %w", err)
	}
	return affected, nil
}

// FetchChargingTransactions returns one page of charging transactions with
// attempt below maxAttempt, across all commands, ordered by transaction
// code.
func (db *DB) FetchChargingTransactions(ctx context.Context, maxAttempt, limit int) ([]*models.FeeTransaction, error) {
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx,
		`SELECT transaction_code, command_code, fee_amount, status, account_number,
		        attempt, remark, created_date, modified_date
		 FROM fee_transactions
		 WHERE status = ? AND attempt < ?
		 ORDER BY transaction_code
		 LIMIT ?`,
		string(models.StatusCharging), maxAttempt, limit)
	metrics.ObserveDBQuery("fetch_charging_transactions", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query charging transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFeeTransactions(rows)
}

// AdvanceScannedTransactions applies one scan page in a single transaction:
// rows in advance get attempt+1; rows in stop get attempt+1 and status
// STOPPED. Both sets get the given modification time. The whole page
// commits or rolls back together.
func (db *DB) AdvanceScannedTransactions(ctx context.Context, advance, stop []string, now time.Time) error {
	if len(advance) == 0 && len(stop) == 0 {
		return nil
	}

	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.advanceScannedTx(qctx, advance, stop, now)
	metrics.ObserveDBQuery("advance_scanned_transactions", start, err)
	return err
}

func (db *DB) advanceScannedTx(ctx context.Context, advance, stop []string, now time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin scan transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if len(advance) > 0 {
		args := make([]any, 0, len(advance)+1)
		args = append(args, now)
		for _, code := range advance {
			args = append(args, code)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE fee_transactions
			 SET attempt = attempt + 1, modified_date = ?
			 WHERE transaction_code IN (`+placeholders(len(advance))+`)`,
			args...); err != nil {
			return fmt.Errorf("failed to advance scan page: %w", err)
		}
	}

	if len(stop) > 0 {
		args := make([]any, 0, len(stop)+2)
		args = append(args, string(models.StatusStopped), now)
		for _, code := range stop {
			args = append(args, code)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE fee_transactions
			 SET attempt = attempt + 1, status = ?, modified_date = ?
			 WHERE transaction_code IN (`+placeholders(len(stop))+`)`,
			args...); err != nil {
			return fmt.Errorf("failed to stop exhausted transactions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan page: %w", err)
	}
	return nil
}

// CountTransactionsByStatus returns the per-status transaction counts for
// one command. Statuses with no rows are absent from the map.
func (db *DB) CountTransactionsByStatus(ctx context.Context, commandCode string) (map[models.Status]int, error) {
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx,
		`SELECT status, COUNT(*) FROM fee_transactions
		 WHERE command_code = ?
		 GROUP BY status`,
		commandCode)
	metrics.ObserveDBQuery("count_transactions_by_status", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions for %s: %w", commandCode, err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

// scanFeeTransactions drains rows into transaction records.
func scanFeeTransactions(rows *sql.Rows) ([]*models.FeeTransaction, error) {
	var txns []*models.FeeTransaction
	for rows.Next() {
		var txn models.FeeTransaction
		var status string
		var accountNumber, remark sql.NullString
		var modified sql.NullTime
		if err := rows.Scan(
			&txn.TransactionCode, &txn.CommandCode, &txn.FeeAmount, &status,
			&accountNumber, &txn.Attempt, &remark, &txn.CreatedDate, &modified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fee transaction: %w", err)
		}
		txn.Status = models.Status(status)
		txn.AccountNumber = accountNumber.String
		txn.Remark = remark.String
		if modified.Valid {
			t := modified.Time
			txn.ModifiedDate = &t
		}
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee transactions: %w", err)
	}
	return txns, nil
}
