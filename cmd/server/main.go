// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Command server runs the Feeflow service: the fee admission API, the
// activation sweep, and the supervised retry scan scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/feeflow/internal/api"
	"github.com/tomtom215/feeflow/internal/config"
	"github.com/tomtom215/feeflow/internal/database"
	"github.com/tomtom215/feeflow/internal/fee"
	"github.com/tomtom215/feeflow/internal/fee/scheduler"
	"github.com/tomtom215/feeflow/internal/idempotency"
	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/snowflake"
	"github.com/tomtom215/feeflow/internal/supervisor"
	"github.com/tomtom215/feeflow/internal/supervisor/services"
)

// defaultNodeID identifies this instance in generated IDs. Instances
// sharing a store must use distinct node IDs.
const defaultNodeID = 5

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Service failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Path).
		Msg("Starting feeflow")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open fee store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close fee store")
		}
	}()

	tracker, err := idempotency.New(&cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open idempotency store: %w", err)
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close idempotency store")
		}
	}()

	recordIDs, err := snowflake.New(snowflake.NodeTypeRecord, defaultNodeID)
	if err != nil {
		return fmt.Errorf("failed to create record ID generator: %w", err)
	}
	logIDs, err := snowflake.New(snowflake.NodeTypeLog, defaultNodeID)
	if err != nil {
		return fmt.Errorf("failed to create log ID generator: %w", err)
	}

	engine := fee.NewEngine(db, tracker, recordIDs, fee.Config{
		FreshnessWindow:    cfg.Admission.FreshnessWindow,
		ActivationPageSize: cfg.Sweep.ActivationPageSize,
		ScanPageSize:       cfg.Sweep.ScanPageSize,
		Location:           cfg.Cache.MarkerLocation(),
	})

	scanScheduler := scheduler.New(engine, logIDs, scheduler.Config{
		Interval: cfg.Scheduler.ScanInterval,
		Enabled:  cfg.Scheduler.Enabled,
	})

	handlers := api.NewHandlers(engine, db)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, &cfg.API),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(
		slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		supervisor.DefaultTreeConfig(),
	)
	tree.AddJobService(services.NewScanSchedulerService(scanScheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Feeflow running")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree failed: %w", err)
	}

	logging.Info().Msg("Feeflow stopped")
	return nil
}
