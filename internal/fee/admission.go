// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/metrics"
	"github.com/tomtom215/feeflow/internal/models"
)

// requestTimeLayout is the strict 14-digit wire timestamp (yyyyMMddHHmmss).
const requestTimeLayout = "20060102150405"

// ErrInvalidRequestTime marks a malformed request timestamp. This is an
// input-validation error raised before any store or cache access, distinct
// from the Expired policy outcome.
var ErrInvalidRequestTime = errors.New("request time is not a valid yyyyMMddHHmmss timestamp")

// Outcome is the admission-policy result. Expired and Duplicate are
// first-class outcomes the caller branches on, not errors.
type Outcome int

const (
	// OutcomeAdmitted means the command and its fan-out were committed.
	OutcomeAdmitted Outcome = iota

	// OutcomeExpired means the request timestamp fell outside the
	// freshness window. Takes precedence over Duplicate.
	OutcomeExpired

	// OutcomeDuplicate means the request ID was already marked.
	OutcomeDuplicate

	// OutcomeFailed means the transactional write could not commit.
	OutcomeFailed
)

// String returns the metric/log label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeExpired:
		return "expired"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// CommandRequest is an inbound fee command submission.
type CommandRequest struct {
	// RequestID is the client-supplied idempotency key.
	RequestID string

	// RequestTime is the client-supplied wire timestamp (yyyyMMddHHmmss).
	RequestTime string

	// CommandCode targets an existing command (update path only).
	CommandCode string

	// TotalFee is the total monetary amount of the campaign.
	TotalFee float64

	// TotalRecord is the number of transactions to fan out.
	TotalRecord int

	// AccountNumber is the account each transaction charges.
	AccountNumber string

	// FeeAmount is the per-transaction amount; when zero it defaults to
	// TotalFee / TotalRecord.
	FeeAmount float64
}

// Result reports the admission outcome. CommandCode is set only when the
// outcome is Admitted.
type Result struct {
	Outcome     Outcome
	CommandCode string
}

// Admit runs the init path: freshness check, dedup check, marker write,
// then the atomic command + fan-out creation.
//
// The checks are ordered so their precedence is explicit: a request that is
// both expired and duplicated reports Expired. The marker write is
// best-effort; a cache outage degrades dedup protection but never blocks
// admission.
func (e *Engine) Admit(ctx context.Context, req *CommandRequest) (*Result, error) {
	log := logging.Ctx(ctx)

	outcome, err := e.gate(ctx, req.RequestID, req.RequestTime)
	if err != nil {
		return nil, err
	}
	if outcome != OutcomeAdmitted {
		metrics.AdmissionsTotal.WithLabelValues(outcome.String()).Inc()
		log.Info().
			Str("request_id", req.RequestID).
			Str("outcome", outcome.String()).
			Msg("Fee command rejected by admission policy")
		return &Result{Outcome: outcome}, nil
	}

	now := e.now()
	cmd := &models.FeeCommand{
		CommandCode: e.idgen.Next(),
		TotalRecord: req.TotalRecord,
		TotalFee:    req.TotalFee,
		CreatedUser: models.PerformerAdmin,
		CreatedDate: now,
	}

	feeAmount := req.FeeAmount
	if feeAmount == 0 && req.TotalRecord > 0 {
		feeAmount = req.TotalFee / float64(req.TotalRecord)
	}

	txns := make([]*models.FeeTransaction, 0, req.TotalRecord)
	for i := 0; i < req.TotalRecord; i++ {
		txns = append(txns, &models.FeeTransaction{
			TransactionCode: e.idgen.Next(),
			CommandCode:     cmd.CommandCode,
			FeeAmount:       feeAmount,
			Status:          models.StatusCreated,
			AccountNumber:   req.AccountNumber,
			Attempt:         0,
			CreatedDate:     now,
		})
	}

	if err := e.store.CreateFeeCommand(ctx, cmd, txns); err != nil {
		metrics.AdmissionsTotal.WithLabelValues(OutcomeFailed.String()).Inc()
		log.Error().Err(err).
			Str("request_id", req.RequestID).
			Str("command_code", cmd.CommandCode).
			Msg("Fee command creation failed, transaction rolled back")
		return &Result{Outcome: OutcomeFailed}, fmt.Errorf("fee command creation failed: %w", err)
	}

	metrics.AdmissionsTotal.WithLabelValues(OutcomeAdmitted.String()).Inc()
	metrics.FanOutSize.Observe(float64(len(txns)))
	log.Info().
		Str("request_id", req.RequestID).
		Str("command_code", cmd.CommandCode).
		Int("total_record", req.TotalRecord).
		Msg("Fee command admitted")
	return &Result{Outcome: OutcomeAdmitted, CommandCode: cmd.CommandCode}, nil
}

// gate applies the shared freshness and dedup policy used by both the init
// and update paths. Returns OutcomeAdmitted when the request may proceed,
// in which case the marker has already been written (best-effort).
func (e *Engine) gate(ctx context.Context, requestID, requestTime string) (Outcome, error) {
	expired, err := e.isExpired(requestTime)
	if err != nil {
		return OutcomeFailed, err
	}
	if expired {
		// Expiry wins over duplicate by contract; skip the cache lookup.
		return OutcomeExpired, nil
	}

	if e.tracker.Exists(ctx, requestID) {
		return OutcomeDuplicate, nil
	}

	if !e.tracker.Mark(ctx, requestID) {
		logger := logging.Ctx(ctx)
		logger.Warn().
			Str("request_id", requestID).
			Msg("Idempotency marker write failed, proceeding without dedup protection")
	}
	return OutcomeAdmitted, nil
}

// isExpired reports whether the wire timestamp lies more than the
// freshness window away from the server clock, in either direction. The
// difference is truncated to whole minutes before comparison, so 10m59s
// of skew is still inside a 10-minute window.
func (e *Engine) isExpired(requestTime string) (bool, error) {
	if len(requestTime) != len(requestTimeLayout) {
		return false, fmt.Errorf("%w: %q", ErrInvalidRequestTime, requestTime)
	}
	parsed, err := time.ParseInLocation(requestTimeLayout, requestTime, e.cfg.Location)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidRequestTime, requestTime)
	}

	diffMinutes := int64(e.now().Sub(parsed) / time.Minute)
	if diffMinutes < 0 {
		diffMinutes = -diffMinutes
	}
	return diffMinutes > int64(e.cfg.FreshnessWindow), nil
}
