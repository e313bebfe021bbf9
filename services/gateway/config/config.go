// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config builds the gateway's runtime configuration.
//
// Precedence is defaults, then an optional YAML file, then environment
// variables. Every field carries a validate tag and Load refuses a
// configuration that fails validation, so the rest of the gateway can
// trust the values it receives.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the gateway process.
type Config struct {
	// HTTPAddr is the listen address of the gin HTTP/WebSocket server.
	HTTPAddr string `yaml:"http_addr" validate:"required"`

	// TCPAddr is the listen address of the legacy TCP command server.
	TCPAddr string `yaml:"tcp_addr" validate:"required"`

	// DataDir is where the legacy load command resolves CSV filenames.
	DataDir string `yaml:"data_dir" validate:"required"`

	// MaxFileBytes caps uploaded and loaded CSV files.
	MaxFileBytes int64 `yaml:"max_file_bytes" validate:"gt=0"`

	// MaxRows caps parsed dataset rows.
	MaxRows int `yaml:"max_rows" validate:"gt=0"`

	// IdleTTL is how long a session may sit unused before the reaper
	// drops it.
	IdleTTL time.Duration `yaml:"idle_ttl" validate:"gt=0"`

	// ReapInterval is how often the reaper scans for idle sessions.
	ReapInterval time.Duration `yaml:"reap_interval" validate:"gt=0"`

	// DispatchTimeout bounds a single operation execution.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" validate:"gt=0"`

	// RateLimit is requests per second per client IP. Zero disables
	// rate limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`

	// RateBurst is the per-IP burst allowance.
	RateBurst int `yaml:"rate_burst" validate:"gte=0"`

	// TracingEnabled turns on OTLP trace export.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// OTelEndpoint is the OTLP gRPC collector address.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogDir enables an additional JSON log file when non-empty.
	LogDir string `yaml:"log_dir"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		TCPAddr:         ":5000",
		DataDir:         "data",
		MaxFileBytes:    100 * 1024 * 1024,
		MaxRows:         1_000_000,
		IdleTTL:         30 * time.Minute,
		ReapInterval:    time.Minute,
		DispatchTimeout: 30 * time.Second,
		RateLimit:       50,
		RateBurst:       100,
		OTelEndpoint:    "aleutian-otel-collector:4317",
		LogLevel:        "info",
	}
}

// Load builds the configuration. path names an optional YAML file; an
// empty path skips the file layer. Environment variables override both
// the defaults and the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnvString("VIZ_HTTP_ADDR", c.HTTPAddr)
	c.TCPAddr = getEnvString("VIZ_TCP_ADDR", c.TCPAddr)
	c.DataDir = getEnvString("VIZ_DATA_DIR", c.DataDir)
	c.MaxFileBytes = getEnvInt64("VIZ_MAX_FILE_BYTES", c.MaxFileBytes)
	c.MaxRows = getEnvInt("VIZ_MAX_ROWS", c.MaxRows)
	c.IdleTTL = getEnvDuration("VIZ_IDLE_TTL", c.IdleTTL)
	c.ReapInterval = getEnvDuration("VIZ_REAP_INTERVAL", c.ReapInterval)
	c.DispatchTimeout = getEnvDuration("VIZ_DISPATCH_TIMEOUT", c.DispatchTimeout)
	c.RateLimit = getEnvFloat("VIZ_RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvInt("VIZ_RATE_BURST", c.RateBurst)
	c.TracingEnabled = getEnvBool("VIZ_TRACING_ENABLED", c.TracingEnabled)
	c.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTelEndpoint)
	c.LogLevel = getEnvString("VIZ_LOG_LEVEL", c.LogLevel)
	c.LogDir = getEnvString("VIZ_LOG_DIR", c.LogDir)
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
