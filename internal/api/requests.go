// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// validate is the shared validator instance. validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// InitFeeRequest is the body of POST /api/v1/fee/init.
type InitFeeRequest struct {
	RequestID     string  `json:"requestId" validate:"required,max=64"`
	RequestTime   string  `json:"requestTime" validate:"required,len=14,number"`
	TotalFee      float64 `json:"totalFee" validate:"required,gt=0"`
	TotalRecord   int     `json:"totalRecord" validate:"required,min=1,max=1000000"`
	AccountNumber string  `json:"accountNumber" validate:"required,max=32"`

	// FeeAmount optionally sets the per-transaction amount; when absent
	// each transaction carries totalFee / totalRecord.
	FeeAmount float64 `json:"feeAmount" validate:"omitempty,gt=0"`
}

// UpdateFeeRequest is the body of PUT /api/v1/fee/update.
type UpdateFeeRequest struct {
	RequestID   string `json:"requestId" validate:"required,max=64"`
	RequestTime string `json:"requestTime" validate:"required,len=14,number"`
	CommandCode string `json:"commandCode" validate:"required,max=64"`
}

// decodeAndValidate parses the request body into dst and runs struct
// validation. Unknown fields are rejected to surface client typos early.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}
