// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/config/config.yaml",
	"/config/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default values. Exported where other packages fall back to them.
const (
	DefaultPort          = 3184
	DefaultBatchSize     = 20
	DefaultRetryAttempts = 10
	DefaultRetryDelay    = 30 * time.Second
	DefaultWatermarkPath = "watermarks.json"
	DefaultPlexTVURL     = "https://plex.tv"
)

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Update: UpdateConfig{
			BatchSize:     DefaultBatchSize,
			BatchDelay:    time.Second,
			RetryAttempts: DefaultRetryAttempts,
			RetryDelay:    DefaultRetryDelay,
		},
		Plex: PlexConfig{
			RequestTimeout:       30 * time.Second,
			RequestInterval:      50 * time.Millisecond,
			LibraryRetryAttempts: DefaultRetryAttempts,
			LibraryRetryDelay:    DefaultRetryDelay,
			TVURL:                DefaultPlexTVURL,
		},
		State: StateConfig{
			WatermarkPath: DefaultWatermarkPath,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              DefaultPort,
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration using Koanf with layered sources:
//
//  1. Defaults: Built-in sensible defaults
//  2. Config File: the YAML file at path, or the first of CONFIG_PATH and
//     DefaultConfigPaths that exists
//  3. Environment Variables: Override any scalar setting
//
// The returned configuration has been validated and its filters parsed.
// Every error wraps ErrInvalid.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("%w: failed to load defaults: %v", ErrInvalid, err)
	}

	// Layer 2: Load config file. Groups and filters only exist in the file,
	// so a missing file is reported here instead of as a pile of
	// "required" errors.
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath == "" {
		return nil, fmt.Errorf("%w: no config file found (set %s or place config.yaml in the working directory)", ErrInvalid, ConfigPathEnvVar)
	}
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: failed to load config file %s: %v", ErrInvalid, configPath, err)
	}

	// Layer 3: Load environment variables (highest priority)
	// PLEX_SERVER_URL -> plex_server_url
	// UPDATE_BATCH_SIZE -> update.batch_size
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("%w: failed to load environment variables: %v", ErrInvalid, err)
	}

	// User, library and group names may contain dots, which k splits into
	// nested keys. Those maps come from a second read that never splits.
	for _, key := range namedMapKeys {
		k.Delete(key)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal configuration: %v", ErrInvalid, err)
	}
	if err := loadNamedMaps(configPath, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// rawDelim never occurs in YAML keys, so paths are never split.
const rawDelim = "\x00"

// namedMapKeys are the top-level maps keyed by user-chosen names.
var namedMapKeys = []string{"managed_users", "groups", "filters"}

// loadNamedMaps fills the namedMapKeys maps with their keys taken verbatim.
func loadNamedMaps(path string, cfg *Config) error {
	raw := koanf.New(rawDelim)
	if err := raw.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%w: failed to load config file %s: %v", ErrInvalid, path, err)
	}
	targets := map[string]interface{}{
		"managed_users": &cfg.ManagedUsers,
		"groups":        &cfg.Groups,
		"filters":       &cfg.Filters,
	}
	for _, key := range namedMapKeys {
		if err := raw.Unmarshal(key, targets[key]); err != nil {
			return fmt.Errorf("%w: failed to unmarshal %s: %v", ErrInvalid, key, err)
		}
	}
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Variables not listed are ignored so unrelated environment never leaks
// into configuration.
var envMappings = map[string]string{
	// Plex connection
	"plex_server_url":        "plex_server_url",
	"plex_owner_name":        "plex_owner_name",
	"plex_owner_token":       "plex_owner_token",
	"plex_client_identifier": "plex_client_identifier",
	"plex_request_timeout":   "plex.request_timeout",
	"plex_request_interval":  "plex.request_interval",
	"plex_tv_url":            "plex.tv_url",

	// Run behavior
	"dry_run":                     "dry_run",
	"full_run_on_start":           "full_run_on_start",
	"partial_run_on_start":        "partial_run_on_start",
	"clean_run_on_start":          "clean_run_on_start",
	"full_run_cron_expression":    "full_run_cron_expression",
	"partial_run_cron_expression": "partial_run_cron_expression",

	// Update dispatch
	"update_batch_size":     "update.batch_size",
	"update_batch_delay":    "update.batch_delay",
	"update_retry_attempts": "update.retry_attempts",
	"update_retry_delay":    "update.retry_delay",

	// State
	"watermark_path": "state.watermark_path",

	// HTTP server
	"http_host":             "server.host",
	"port":                  "server.port",
	"http_port":             "server.port",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
	"log_file":   "logging.file",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Returning "" tells the env provider to skip the variable.
//
// Examples:
//   - PLEX_OWNER_TOKEN -> plex_owner_token
//   - UPDATE_BATCH_SIZE -> update.batch_size
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
