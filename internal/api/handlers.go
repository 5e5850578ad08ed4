// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package api exposes the fee lifecycle over HTTP: command admission,
// activation, and command lookup, on a Chi router with the middleware the
// service needs in front of them.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/feeflow/internal/database"
	"github.com/tomtom215/feeflow/internal/fee"
	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/models"
)

// Service is the engine surface the handlers drive. Implemented by
// *fee.Engine.
type Service interface {
	Admit(ctx context.Context, req *fee.CommandRequest) (*fee.Result, error)
	Update(ctx context.Context, req *fee.CommandRequest) (*fee.Result, error)
}

// CommandReader serves the lookup endpoint. Implemented by *database.DB.
type CommandReader interface {
	GetFeeCommand(ctx context.Context, commandCode string) (*models.FeeCommand, error)
	CountTransactionsByStatus(ctx context.Context, commandCode string) (map[models.Status]int, error)
}

// Handlers holds the HTTP handlers for the fee API.
type Handlers struct {
	service Service
	reader  CommandReader
}

// NewHandlers creates the handler set.
func NewHandlers(service Service, reader CommandReader) *Handlers {
	return &Handlers{service: service, reader: reader}
}

// outcomeMessages are the wire messages for non-admitted policy outcomes.
var outcomeMessages = map[fee.Outcome]string{
	fee.OutcomeExpired:   "request time expired",
	fee.OutcomeDuplicate: "duplicate request",
}

// InitFee handles POST /api/v1/fee/init: admit a fee command and fan out
// its transactions.
func (h *Handlers) InitFee(w http.ResponseWriter, r *http.Request) {
	var req InitFeeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, req.RequestID, err.Error())
		return
	}

	result, err := h.service.Admit(r.Context(), &fee.CommandRequest{
		RequestID:     req.RequestID,
		RequestTime:   req.RequestTime,
		TotalFee:      req.TotalFee,
		TotalRecord:   req.TotalRecord,
		AccountNumber: req.AccountNumber,
		FeeAmount:     req.FeeAmount,
	})
	if err != nil {
		h.writeEngineError(w, r, req.RequestID, err)
		return
	}
	if result.Outcome != fee.OutcomeAdmitted {
		writeFailure(w, http.StatusOK, req.RequestID, outcomeMessages[result.Outcome])
		return
	}

	writeSuccess(w, req.RequestID, "fee command admitted", map[string]any{
		"commandCode": result.CommandCode,
		"totalRecord": req.TotalRecord,
	})
}

// UpdateFee handles PUT /api/v1/fee/update: run the admission gate, then
// sweep the command's transactions into charging.
func (h *Handlers) UpdateFee(w http.ResponseWriter, r *http.Request) {
	var req UpdateFeeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, req.RequestID, err.Error())
		return
	}

	result, err := h.service.Update(r.Context(), &fee.CommandRequest{
		RequestID:   req.RequestID,
		RequestTime: req.RequestTime,
		CommandCode: req.CommandCode,
	})
	if err != nil {
		h.writeEngineError(w, r, req.RequestID, err)
		return
	}
	if result.Outcome != fee.OutcomeAdmitted {
		writeFailure(w, http.StatusOK, req.RequestID, outcomeMessages[result.Outcome])
		return
	}

	writeSuccess(w, req.RequestID, "fee command activated", map[string]any{
		"commandCode": result.CommandCode,
	})
}

// GetFeeCommand handles GET /api/v1/fee/commands/{code}: the command record
// plus its per-status transaction counts, for reconciliation.
func (h *Handlers) GetFeeCommand(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeFailure(w, http.StatusBadRequest, "", "command code is required")
		return
	}

	cmd, err := h.reader.GetFeeCommand(r.Context(), code)
	if errors.Is(err, database.ErrCommandNotFound) {
		writeFailure(w, http.StatusNotFound, "", "fee command not found")
		return
	}
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).
			Str("command_code", code).
			Msg("Fee command lookup failed")
		writeFailure(w, http.StatusInternalServerError, "", "internal error")
		return
	}

	counts, err := h.reader.CountTransactionsByStatus(r.Context(), code)
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).
			Str("command_code", code).
			Msg("Fee transaction count failed")
		writeFailure(w, http.StatusInternalServerError, "", "internal error")
		return
	}

	writeSuccess(w, "", "ok", map[string]any{
		"command": cmd,
		"transactionCounts": map[string]int{
			"created":  counts[models.StatusCreated],
			"charging": counts[models.StatusCharging],
			"stopped":  counts[models.StatusStopped],
		},
	})
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "", "ok", map[string]string{"status": "healthy"})
}

// writeEngineError maps engine errors onto wire responses. Malformed
// timestamps are the client's fault; everything else is a server-side
// failure.
func (h *Handlers) writeEngineError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	if errors.Is(err, fee.ErrInvalidRequestTime) {
		writeFailure(w, http.StatusBadRequest, requestID, err.Error())
		return
	}
	logger := logging.Ctx(r.Context())
	logger.Error().Err(err).
		Str("request_id", requestID).
		Msg("Fee operation failed")
	writeFailure(w, http.StatusInternalServerError, requestID, "internal error")
}
