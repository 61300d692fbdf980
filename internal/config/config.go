/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment     string
	HTTPBind        string
	HTTPPort        int
	DBBackend       DatabaseBackend
	DBDSN           string
	DefaultTimezone string
	JWTSigningKey   string
	MetricsBind     string

	// Calendar windows
	DisplayLookahead  time.Duration
	RecorderLookahead time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:     getEnvAny([]string{"RADIOCO_ENV", "ENVIRONMENT"}, "development"),
		HTTPBind:        getEnv("RADIOCO_HTTP_BIND", "0.0.0.0"),
		HTTPPort:        getEnvInt("RADIOCO_HTTP_PORT", 8080),
		DBBackend:       DatabaseBackend(getEnv("RADIOCO_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:           getEnv("RADIOCO_DB_DSN", ""),
		DefaultTimezone: getEnv("RADIOCO_DEFAULT_TIMEZONE", "UTC"),
		JWTSigningKey:   getEnv("RADIOCO_JWT_SIGNING_KEY", ""),
		MetricsBind:     getEnv("RADIOCO_METRICS_BIND", "127.0.0.1:9000"),

		DisplayLookahead:  time.Duration(getEnvInt("RADIOCO_DISPLAY_LOOKAHEAD_HOURS", 168)) * time.Hour,
		RecorderLookahead: time.Duration(getEnvInt("RADIOCO_RECORDER_LOOKAHEAD_HOURS", 24)) * time.Hour,

		TracingEnabled:    getEnvBool("RADIOCO_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("RADIOCO_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("RADIOCO_TRACING_SAMPLE_RATE", 1.0),

		CacheEnabled:  getEnvBool("RADIOCO_CACHE_ENABLED", true),
		RedisAddr:     getEnv("RADIOCO_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("RADIOCO_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("RADIOCO_REDIS_DB", 0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("RADIOCO_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("RADIOCO_JWT_SIGNING_KEY must be provided")
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid RADIOCO_DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
