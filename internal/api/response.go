// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/feeflow/internal/logging"
)

// Wire-level result codes. These mirror the domain protocol: "00" means the
// request was processed, anything else is a rejection whose reason is in the
// message.
const (
	codeSuccess = "00"
	codeFailure = "01"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	// Code is the domain result code ("00" success, "01" failure).
	Code string `json:"code"`

	// Message is a human-readable result description.
	Message string `json:"message"`

	// RequestID echoes the client's idempotency key when one was supplied.
	RequestID string `json:"requestId,omitempty"`

	// Data carries the endpoint-specific payload on success.
	Data any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp *APIResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := logging.Logger()
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeSuccess(w http.ResponseWriter, requestID, message string, data any) {
	writeJSON(w, http.StatusOK, &APIResponse{
		Code:      codeSuccess,
		Message:   message,
		RequestID: requestID,
		Data:      data,
	})
}

func writeFailure(w http.ResponseWriter, status int, requestID, message string) {
	writeJSON(w, status, &APIResponse{
		Code:      codeFailure,
		Message:   message,
		RequestID: requestID,
	})
}
