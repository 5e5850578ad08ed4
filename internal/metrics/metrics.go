// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package metrics provides Prometheus instrumentation for:
//   - Admission outcomes and fan-out sizes
//   - Activation sweep pages and rows
//   - Retry scanner ticks, advanced rows, and stopped transactions
//   - DuckDB query performance
//   - Idempotency marker store operations
//   - HTTP endpoint latency
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admission metrics

	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_admissions_total",
			Help: "Total number of fee command admission attempts by outcome",
		},
		[]string{"outcome"}, // admitted, expired, duplicate, failed
	)

	FanOutSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fee_fanout_transactions",
			Help:    "Number of fee transactions created per admitted command",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	// Activation sweep metrics

	ActivationPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_activation_pages_total",
			Help: "Total number of activation sweep pages by result",
		},
		[]string{"result"}, // committed, failed
	)

	ActivatedTransactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_activated_transactions_total",
			Help: "Total number of fee transactions moved into charging",
		},
	)

	// Retry scanner metrics

	ScanTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_scan_ticks_total",
			Help: "Total number of retry scan ticks by result",
		},
		[]string{"result"}, // committed, empty, failed, skipped
	)

	ScannedTransactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_scanned_transactions_total",
			Help: "Total number of fee transactions whose attempt counter advanced",
		},
	)

	StoppedTransactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_stopped_transactions_total",
			Help: "Total number of fee transactions stopped after exhausting attempts",
		},
	)

	// Idempotency marker store metrics

	MarkerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_idempotency_operations_total",
			Help: "Total number of idempotency marker operations",
		},
		[]string{"operation", "outcome"}, // operation: check, mark; outcome: hit, miss, ok, error
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)

// ObserveDBQuery records one database operation's duration and error state.
func ObserveDBQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// ObserveAPIRequest records one HTTP request.
func ObserveAPIRequest(endpoint, method string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
}
