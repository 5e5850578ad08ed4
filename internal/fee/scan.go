// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package fee

import (
	"context"
	"fmt"

	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/metrics"
	"github.com/tomtom215/feeflow/internal/models"
)

// Scan processes one retry page across all commands: every CHARGING
// transaction with attempt < 5 in the page gets its attempt advanced by 1;
// rows entering their 5th attempt flip to STOPPED in the same commit, so
// they never match the scan filter again.
//
// A single invocation handles at most one page. Unlike the activation
// sweep it does not drain to exhaustion: the scheduler re-invokes it every
// tick and the remaining rows are picked up then. On page failure the
// whole page rolls back and the unmodified rows are retried next tick.
func (e *Engine) Scan(ctx context.Context) error {
	log := logging.Ctx(ctx)
	log.Info().Msg("Starting fee transaction scan")

	page, err := e.store.FetchChargingTransactions(ctx, models.MaxScanAttempts, e.cfg.ScanPageSize)
	if err != nil {
		metrics.ScanTicksTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Scan page fetch failed")
		return fmt.Errorf("scan fetch failed: %w", err)
	}
	if len(page) == 0 {
		metrics.ScanTicksTotal.WithLabelValues("empty").Inc()
		log.Debug().Msg("No charging transactions to scan")
		return nil
	}

	// attempt == MaxScanAttempts-1 means this increment is the final
	// allowed one; it lands on the cap and stops the transaction.
	var advance, stop []string
	for _, txn := range page {
		if txn.Attempt == models.MaxScanAttempts-1 {
			stop = append(stop, txn.TransactionCode)
		} else {
			advance = append(advance, txn.TransactionCode)
		}
	}

	if err := e.store.AdvanceScannedTransactions(ctx, advance, stop, e.now()); err != nil {
		metrics.ScanTicksTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).
			Int("page_size", len(page)).
			Msg("Scan page failed, rolled back for next tick")
		return fmt.Errorf("scan page failed: %w", err)
	}

	metrics.ScanTicksTotal.WithLabelValues("committed").Inc()
	metrics.ScannedTransactionsTotal.Add(float64(len(page)))
	metrics.StoppedTransactionsTotal.Add(float64(len(stop)))
	log.Info().
		Int("scanned", len(page)).
		Int("stopped", len(stop)).
		Msg("Fee transaction scan committed")
	return nil
}
