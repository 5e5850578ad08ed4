// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8099, cfg.Server.Port)
	assert.Equal(t, "/data/feeflow.duckdb", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Admission.FreshnessWindow)
	assert.Equal(t, 500, cfg.Sweep.ActivationPageSize)
	assert.Equal(t, 500, cfg.Sweep.ScanPageSize)
	assert.Equal(t, 180*time.Second, cfg.Scheduler.ScanInterval)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "UTC", cfg.Cache.Timezone)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("DATABASE_PATH", ":memory:")
	t.Setenv("CACHE_IN_MEMORY", "true")
	t.Setenv("SCHEDULER_SCAN_INTERVAL", "90s")
	t.Setenv("ADMISSION_FRESHNESS_WINDOW_MINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.True(t, cfg.Cache.InMemory)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.ScanInterval)
	assert.Equal(t, 5, cfg.Admission.FreshnessWindow)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9200\ncache:\n  timezone: Asia/Ho_Chi_Minh\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Cache.Timezone)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9200\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SERVER_PORT", "9300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero query timeout", func(c *Config) { c.Database.QueryTimeout = 0 }},
		{"disk cache without path", func(c *Config) { c.Cache.Path = ""; c.Cache.InMemory = false }},
		{"bad timezone", func(c *Config) { c.Cache.Timezone = "Mars/Olympus" }},
		{"zero freshness window", func(c *Config) { c.Admission.FreshnessWindow = 0 }},
		{"zero activation page", func(c *Config) { c.Sweep.ActivationPageSize = 0 }},
		{"zero scan page", func(c *Config) { c.Sweep.ScanPageSize = 0 }},
		{"zero scan interval", func(c *Config) { c.Scheduler.ScanInterval = 0 }},
		{"zero rate limit", func(c *Config) { c.API.RateLimitRequests = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMarkerLocation(t *testing.T) {
	cc := CacheConfig{Timezone: "Asia/Ho_Chi_Minh"}
	loc := cc.MarkerLocation()
	require.NotNil(t, loc)
	assert.Equal(t, "Asia/Ho_Chi_Minh", loc.String())

	// Unvalidated config falls back to UTC instead of exploding.
	bad := CacheConfig{Timezone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, bad.MarkerLocation())
}

func TestEnvTransformIgnoresUnknown(t *testing.T) {
	assert.Empty(t, envTransformFunc("PATH"))
	assert.Empty(t, envTransformFunc("HOME"))
	assert.Equal(t, "server.port", envTransformFunc("SERVER_PORT"))
	assert.Equal(t, "server.port", envTransformFunc("server_port"))
}
