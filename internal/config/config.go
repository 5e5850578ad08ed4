// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package config holds all application configuration, loaded once at startup
// via Koanf v2 with layered sources (defaults, optional YAML file,
// environment variables) and validated eagerly. Config is immutable after
// Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Feeflow service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Admission AdmissionConfig `koanf:"admission"`
	Sweep     SweepConfig     `koanf:"sweep"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings for the fee store.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for tests.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`

	// QueryTimeout bounds each statement against the store so a degraded
	// store cannot block a sweep indefinitely.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// CacheConfig holds BadgerDB settings for the idempotency marker store.
type CacheConfig struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence (tests, dev).
	InMemory bool `koanf:"in_memory"`

	// Timezone is the IANA zone in which "end of day" marker expiry is
	// computed. Must be consistent across all instances sharing markers.
	Timezone string `koanf:"timezone"`
}

// AdmissionConfig holds the request admission policy.
type AdmissionConfig struct {
	// FreshnessWindow is the maximum allowed distance between a request's
	// client-supplied timestamp and the server clock, in whole minutes.
	FreshnessWindow int `koanf:"freshness_window_minutes"`
}

// SweepConfig holds page sizes for the batch transitions.
type SweepConfig struct {
	// ActivationPageSize bounds each page of the activation drain.
	ActivationPageSize int `koanf:"activation_page_size"`

	// ScanPageSize bounds the single page processed per scan tick.
	ScanPageSize int `koanf:"scan_page_size"`
}

// SchedulerConfig holds the retry-scan schedule.
type SchedulerConfig struct {
	// Enabled controls whether the scan scheduler runs.
	Enabled bool `koanf:"enabled"`

	// ScanInterval is the fixed period between scan ticks.
	ScanInterval time.Duration `koanf:"scan_interval"`
}

// APIConfig holds HTTP API limits.
type APIConfig struct {
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would misbehave at
// runtime. Called by Load; callers constructing Config directly (tests)
// should call it themselves.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive")
	}
	if !c.Cache.InMemory && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required unless cache.in_memory is set")
	}
	if _, err := time.LoadLocation(c.Cache.Timezone); err != nil {
		return fmt.Errorf("cache.timezone %q: %w", c.Cache.Timezone, err)
	}
	if c.Admission.FreshnessWindow <= 0 {
		return fmt.Errorf("admission.freshness_window_minutes must be positive")
	}
	if c.Sweep.ActivationPageSize <= 0 {
		return fmt.Errorf("sweep.activation_page_size must be positive")
	}
	if c.Sweep.ScanPageSize <= 0 {
		return fmt.Errorf("sweep.scan_page_size must be positive")
	}
	if c.Scheduler.ScanInterval <= 0 {
		return fmt.Errorf("scheduler.scan_interval must be positive")
	}
	if !c.API.RateLimitDisabled && c.API.RateLimitRequests <= 0 {
		return fmt.Errorf("api.rate_limit_requests must be positive when rate limiting is enabled")
	}
	return nil
}

// MarkerLocation returns the time.Location for marker expiry. Validate
// guarantees the zone parses, so errors here indicate a Config that skipped
// validation; UTC is the fallback.
func (c *CacheConfig) MarkerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
