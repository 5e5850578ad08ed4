// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/feeflow/config.yaml",
	"/etc/feeflow/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8099,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "/data/feeflow.duckdb",
			MaxMemory:    "2GB",
			Threads:      0, // 0 = runtime.NumCPU()
			QueryTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Path:     "/data/idempotency",
			InMemory: false,
			Timezone: "UTC",
		},
		Admission: AdmissionConfig{
			FreshnessWindow: 10,
		},
		Sweep: SweepConfig{
			ActivationPageSize: 500,
			ScanPageSize:       500,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			ScanInterval: 180 * time.Second,
		},
		API: APIConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources (highest priority last):
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SERVER_PORT -> server.port, CACHE_IN_MEMORY -> cache.in_memory, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths. Only
// known variables are mapped; everything else is ignored so unrelated
// environment noise cannot leak into the configuration.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"SERVER_HOST":    "server.host",
		"SERVER_PORT":    "server.port",
		"SERVER_TIMEOUT": "server.timeout",

		"DATABASE_PATH":          "database.path",
		"DATABASE_MAX_MEMORY":    "database.max_memory",
		"DATABASE_THREADS":       "database.threads",
		"DATABASE_QUERY_TIMEOUT": "database.query_timeout",

		"CACHE_PATH":      "cache.path",
		"CACHE_IN_MEMORY": "cache.in_memory",
		"CACHE_TIMEZONE":  "cache.timezone",

		"ADMISSION_FRESHNESS_WINDOW_MINUTES": "admission.freshness_window_minutes",

		"SWEEP_ACTIVATION_PAGE_SIZE": "sweep.activation_page_size",
		"SWEEP_SCAN_PAGE_SIZE":       "sweep.scan_page_size",

		"SCHEDULER_ENABLED":       "scheduler.enabled",
		"SCHEDULER_SCAN_INTERVAL": "scheduler.scan_interval",

		"API_RATE_LIMIT_REQUESTS": "api.rate_limit_requests",
		"API_RATE_LIMIT_WINDOW":   "api.rate_limit_window",
		"API_RATE_LIMIT_DISABLED": "api.rate_limit_disabled",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}
	if path, ok := mappings[strings.ToUpper(key)]; ok {
		return path
	}
	return ""
}
