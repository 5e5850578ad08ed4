// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package services

import (
	"context"
	"fmt"
)

// ScanSchedulerManager matches the scan scheduler's Start/Stop lifecycle.
// Satisfied by *scheduler.Scheduler.
type ScanSchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// ScanSchedulerService runs the scan scheduler as a supervised service:
// Start, block until cancellation, Stop.
type ScanSchedulerService struct {
	manager ScanSchedulerManager
}

// NewScanSchedulerService wraps manager for supervision.
func NewScanSchedulerService(manager ScanSchedulerManager) *ScanSchedulerService {
	return &ScanSchedulerService{manager: manager}
}

// Serve implements suture.Service. A Start failure returns immediately so
// suture restarts the service on its backoff policy.
func (s *ScanSchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("scan scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("scan scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *ScanSchedulerService) String() string {
	return "scan-scheduler"
}
