// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/rules"
	"github.com/tomtom215/defaulterr/internal/validation"
)

// Validate checks all configuration values and parses the filters section.
// Every returned error wraps ErrInvalid.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, verr.Error())
	}

	validators := []func() error{
		c.validatePlex,
		c.validateSchedule,
		c.validateManagedUsers,
		c.validateGroups,
		c.validateFilters,
		c.validateServer,
		c.validateLogging,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	return nil
}

// validatePlex validates the Plex connection settings
func (c *Config) validatePlex() error {
	c.PlexServerURL = strings.TrimRight(strings.TrimSpace(c.PlexServerURL), "/")
	if err := validateHTTPURL(c.PlexServerURL, "plex_server_url"); err != nil {
		return err
	}
	if c.Plex.TVURL == "" {
		c.Plex.TVURL = DefaultPlexTVURL
	}
	c.Plex.TVURL = strings.TrimRight(c.Plex.TVURL, "/")
	return validateHTTPURL(c.Plex.TVURL, "plex.tv_url")
}

// validateSchedule allows at most one cron expression. Syntax is checked by the cron tag.
func (c *Config) validateSchedule() error {
	c.FullRunCronExpression = strings.TrimSpace(c.FullRunCronExpression)
	c.PartialRunCronExpression = strings.TrimSpace(c.PartialRunCronExpression)

	if c.FullRunCronExpression != "" && c.PartialRunCronExpression != "" {
		return fmt.Errorf("full_run_cron_expression and partial_run_cron_expression are mutually exclusive")
	}

	return nil
}

// validateManagedUsers rejects users without a token
func (c *Config) validateManagedUsers() error {
	for name, token := range c.ManagedUsers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("managed_users contains an empty user name")
		}
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("managed_users.%s has no token", name)
		}
	}
	return nil
}

// validateGroups rejects empty groups
func (c *Config) validateGroups() error {
	for name, members := range c.Groups {
		if len(members) == 0 {
			return fmt.Errorf("group %q has no members", name)
		}
		for _, m := range members {
			if strings.TrimSpace(m) == "" {
				return fmt.Errorf("group %q contains an empty member", name)
			}
		}
	}
	return nil
}

// validateFilters parses every library's rules and checks group references
func (c *Config) validateFilters() error {
	libraries := make([]string, 0, len(c.Filters))
	for name := range c.Filters {
		libraries = append(libraries, name)
	}
	sort.Strings(libraries)

	parsed := make([]rules.LibraryFilters, 0, len(libraries))
	for _, library := range libraries {
		lf, err := rules.ParseLibraryFilters(library, c.Filters[library])
		if err != nil {
			return fmt.Errorf("filters: %w", err)
		}
		for _, g := range lf.Groups {
			if _, ok := c.Groups[g.Group]; !ok {
				return fmt.Errorf("filters: library %q references unknown group %q", library, g.Group)
			}
		}
		parsed = append(parsed, lf)
	}

	c.libraryFilters = parsed
	return nil
}

// validateServer validates HTTP server settings
func (c *Config) validateServer() error {
	if !c.Server.RateLimitDisabled && c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	return nil
}

// validateLogging validates the log level
func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a valid level (trace, debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}
