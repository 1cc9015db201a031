// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package config

import (
	"errors"
	"time"

	"github.com/tomtom215/defaulterr/internal/rules"
)

// ErrInvalid marks every configuration error. All of them are fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
//
// Top-level keys keep the flat names used by earlier releases so existing
// config.yaml files load unchanged.
type Config struct {
	PlexServerURL        string `koanf:"plex_server_url" validate:"required"`
	PlexOwnerName        string `koanf:"plex_owner_name"`
	PlexOwnerToken       string `koanf:"plex_owner_token" validate:"required"`
	PlexClientIdentifier string `koanf:"plex_client_identifier" validate:"required"`

	// ManagedUsers maps a Plex Home user name to its server token.
	ManagedUsers map[string]string `koanf:"managed_users"`

	// Groups maps a group name to user names ("$ALL" for everyone).
	Groups map[string][]string `koanf:"groups" validate:"required,min=1"`

	// Filters maps library name -> group name -> {audio, subtitles}. The raw
	// shape is parsed into LibraryFilters during Validate.
	Filters map[string]map[string]interface{} `koanf:"filters" validate:"required,min=1"`

	DryRun            bool `koanf:"dry_run"`
	FullRunOnStart    bool `koanf:"full_run_on_start"`
	PartialRunOnStart bool `koanf:"partial_run_on_start"`
	CleanRunOnStart   bool `koanf:"clean_run_on_start"`

	FullRunCronExpression    string `koanf:"full_run_cron_expression" validate:"cron"`
	PartialRunCronExpression string `koanf:"partial_run_cron_expression" validate:"cron"`

	Update  UpdateConfig  `koanf:"update"`
	Plex    PlexConfig    `koanf:"plex"`
	State   StateConfig   `koanf:"state"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`

	libraryFilters []rules.LibraryFilters
}

// UpdateConfig controls how default-stream calls are fanned out.
type UpdateConfig struct {
	// BatchSize is the number of concurrent calls per batch.
	BatchSize int `koanf:"batch_size" validate:"min=1,max=500"`

	// BatchDelay separates consecutive batches.
	BatchDelay time.Duration `koanf:"batch_delay" validate:"min=0"`

	// RetryAttempts bounds the attempts of a single call, including the first.
	RetryAttempts int `koanf:"retry_attempts" validate:"min=1,max=100"`

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration `koanf:"retry_delay" validate:"min=0"`
}

// PlexConfig tunes the Plex Media Server client.
type PlexConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"min=1s"`

	// RequestInterval is the cooperative pause between library read calls.
	RequestInterval time.Duration `koanf:"request_interval" validate:"min=0"`

	// LibraryRetryAttempts and LibraryRetryDelay apply to the startup library listing.
	LibraryRetryAttempts int           `koanf:"library_retry_attempts" validate:"min=1,max=100"`
	LibraryRetryDelay    time.Duration `koanf:"library_retry_delay" validate:"min=0"`

	// TVURL is the plex.tv base URL (overridable for tests).
	TVURL string `koanf:"tv_url"`
}

// StateConfig holds persisted state locations.
type StateConfig struct {
	WatermarkPath string `koanf:"watermark_path" validate:"required"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// RateLimitRequests per RateLimitWindow per client IP on /webhook and /api.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: console)
//   - LOG_FILE: optional file receiving a JSON copy of the log
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
	File   string `koanf:"file"`
}

// LibraryFilters returns the parsed filters, sorted by library name.
// It is populated by Validate.
func (c *Config) LibraryFilters() []rules.LibraryFilters {
	return c.libraryFilters
}

// FilterFor returns the parsed filters of one library.
func (c *Config) FilterFor(library string) (rules.LibraryFilters, bool) {
	for _, lf := range c.libraryFilters {
		if lf.Library == library {
			return lf, true
		}
	}
	return rules.LibraryFilters{}, false
}

// CronExpression returns the active schedule and whether it drives partial runs.
// At most one of the two expressions is set after validation.
func (c *Config) CronExpression() (expr string, partial bool) {
	if c.PartialRunCronExpression != "" {
		return c.PartialRunCronExpression, true
	}
	return c.FullRunCronExpression, false
}
