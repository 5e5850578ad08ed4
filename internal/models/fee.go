// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package models defines the persistent record types for the fee lifecycle:
// fee commands (one per charging campaign) and fee transactions (one per
// individual charge).
package models

import "time"

// Status is the lifecycle state of a fee transaction. Stored as the
// two-digit wire code. Transitions are strictly forward:
// Created -> Charging -> Stopped.
type Status string

const (
	// StatusCreated marks a transaction not yet picked up for charging.
	StatusCreated Status = "01"

	// StatusCharging marks a transaction under active retry.
	StatusCharging Status = "02"

	// StatusStopped is terminal. It covers both charge completion and
	// retry exhaustion; the record does not distinguish the two.
	StatusStopped Status = "03"
)

// Valid reports whether s is a known status code.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusCharging, StatusStopped:
		return true
	}
	return false
}

// String returns a human-readable name for logs.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusCharging:
		return "CHARGING"
	case StatusStopped:
		return "STOPPED"
	}
	return string(s)
}

// Performer identifies the actor that created a record. The service runs
// with a single fixed system actor.
type Performer string

// PerformerAdmin is the only performer in this system.
const PerformerAdmin Performer = "ADMIN"

// MaxScanAttempts is the total number of scan cycles a charging transaction
// is allowed before it is stopped. Attempt values run 1 through 5.
const MaxScanAttempts = 5

// FeeCommand is one fee-charging campaign. Immutable once created.
type FeeCommand struct {
	CommandCode string    `json:"command_code"`
	TotalRecord int       `json:"total_record"`
	TotalFee    float64   `json:"total_fee"`
	CreatedUser Performer `json:"created_user"`
	CreatedDate time.Time `json:"created_date"`
}

// FeeTransaction is one individual charge belonging to a fee command.
// Created in bulk at admission; advanced by the activation sweep and the
// retry scanner; never deleted.
type FeeTransaction struct {
	TransactionCode string     `json:"transaction_code"`
	CommandCode     string     `json:"command_code"`
	FeeAmount       float64    `json:"fee_amount"`
	Status          Status     `json:"status"`
	AccountNumber   string     `json:"account_number"`
	Attempt         int        `json:"attempt"`
	Remark          string     `json:"remark,omitempty"`
	CreatedDate     time.Time  `json:"created_date"`
	ModifiedDate    *time.Time `json:"modified_date,omitempty"`
}
