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
)

// Update runs the update path: the same freshness/dedup gate as Admit,
// then the activation sweep for the requested command. The returned
// Result carries the command code that was swept.
func (e *Engine) Update(ctx context.Context, req *CommandRequest) (*Result, error) {
	outcome, err := e.gate(ctx, req.RequestID, req.RequestTime)
	if err != nil {
		return nil, err
	}
	if outcome != OutcomeAdmitted {
		logger := logging.Ctx(ctx)
		logger.Info().
			Str("request_id", req.RequestID).
			Str("command_code", req.CommandCode).
			Str("outcome", outcome.String()).
			Msg("Fee update rejected by admission policy")
		return &Result{Outcome: outcome}, nil
	}

	if err := e.Activate(ctx, req.CommandCode); err != nil {
		return &Result{Outcome: OutcomeFailed}, err
	}
	return &Result{Outcome: OutcomeAdmitted, CommandCode: req.CommandCode}, nil
}

// Activate drains every CREATED transaction of one command into CHARGING.
//
// The drain works in bounded pages: fetch up to ActivationPageSize rows
// still matching (command, CREATED, attempt 0), transition the page in one
// store transaction, and fetch again. Transitioned rows drop out of the
// filter, so the loop terminates at the first empty page, and re-invoking
// after a crash or page failure simply resumes with the remaining rows.
func (e *Engine) Activate(ctx context.Context, commandCode string) error {
	log := logging.Ctx(ctx)
	log.Info().Str("command_code", commandCode).Msg("Starting activation sweep")

	var total int64
	for {
		page, err := e.store.FetchCreatedTransactions(ctx, commandCode, e.cfg.ActivationPageSize)
		if err != nil {
			metrics.ActivationPagesTotal.WithLabelValues("failed").Inc()
			log.Error().Err(err).
				Str("command_code", commandCode).
				Msg("Activation page fetch failed, stopping sweep")
			return fmt.Errorf("activation fetch for %s failed: %w", commandCode, err)
		}
		if len(page) == 0 {
			break
		}

		codes := make([]string, 0, len(page))
		for _, txn := range page {
			codes = append(codes, txn.TransactionCode)
		}

		affected, err := e.store.ActivateTransactions(ctx, codes, e.now())
		if err != nil {
			// This page rolled back; rows already committed stay
			// advanced and a later sweep picks up the rest.
			metrics.ActivationPagesTotal.WithLabelValues("failed").Inc()
			log.Error().Err(err).
				Str("command_code", commandCode).
				Int("page_size", len(codes)).
				Msg("Activation page failed, stopping sweep")
			return fmt.Errorf("activation page for %s failed: %w", commandCode, err)
		}

		metrics.ActivationPagesTotal.WithLabelValues("committed").Inc()
		metrics.ActivatedTransactionsTotal.Add(float64(affected))
		total += affected
		log.Debug().
			Str("command_code", commandCode).
			Int64("activated", affected).
			Msg("Activation page committed")
	}

	log.Info().
		Str("command_code", commandCode).
		Int64("activated", total).
		Msg("Activation sweep complete")
	return nil
}
