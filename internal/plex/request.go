// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
request.go - Plex HTTP Request Helpers

This file provides helper functions for building and executing HTTP requests
to the Plex Media Server API with consistent configuration.

Request Configuration:
  - Authentication: X-Plex-Token header on all requests
  - JSON Accept: Optional Accept: application/json header
  - Status Validation: any non-2xx status becomes *StatusError
  - Rate Limiting: Automatic retry with exponential backoff

Helper Functions:
  - read(): throttled, circuit-broken GET with the owner token
  - doRequest(): Execute request with full configuration options
  - doRequestWithRateLimit(): HTTP 429 retry logic
*/

//nolint:staticcheck // File documentation, not package doc
package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/metrics"
)

// maxRateLimitRetries bounds HTTP 429 retries of a single request.
const maxRateLimitRetries = 5

// StatusError is returned for any non-2xx Plex response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex %s %s: unexpected status %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// denied reports statuses that mean "this token may not see this resource".
func (e *StatusError) denied() bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// IsForbidden reports whether err is a 403 from Plex. For default stream
// writes this usually means a ratings or library restriction on the user.
func IsForbidden(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusForbidden
}

// IsUnauthorized reports whether err is a 401 from Plex (token rejected).
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized
}

// requestConfig holds configuration for building HTTP requests
type requestConfig struct {
	method     string
	path       string
	query      url.Values
	token      string // overrides the client token when set
	acceptJSON bool
}

// read is the entry point for library reads: it waits for the limiter, runs
// the request through the circuit breaker and counts failures by kind.
func (c *Client) read(ctx context.Context, kind, path string, query url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, requestConfig{
			method:     http.MethodGet,
			path:       path,
			query:      query,
			acceptJSON: true,
		}, result)
	})
	if err != nil {
		metrics.RecordFetchError(kind)
		return err
	}
	return nil
}

// doRequest is a helper that executes a standard Plex API request and decodes the response
func (c *Client) doRequest(ctx context.Context, cfg requestConfig, result interface{}) error {
	reqURL := c.baseURL + cfg.path

	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	token := cfg.token
	if token == "" {
		token = c.token
	}
	req.Header.Set("X-Plex-Token", token)
	if c.clientID != "" {
		req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	}

	if cfg.acceptJSON {
		req.Header.Set("Accept", "application/json")
	}

	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}

	resp, err := c.doRequestWithRateLimit(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: cfg.method, Path: cfg.path, Code: resp.StatusCode}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s response: %w", cfg.path, err)
		}
	}

	return nil
}

// doRequestWithRateLimit executes HTTP request with automatic retry on rate limiting (HTTP 429)
//
//   - Max 5 retry attempts
//   - Exponential backoff: 1s, 2s, 4s, 8s, 16s
//   - Respects Retry-After header (RFC 6585) if present
//   - Only retries on HTTP 429 (Too Many Requests)
//
// The caller must close the Body of the returned response.
func (c *Client) doRequestWithRateLimit(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()

		if attempt == maxRateLimitRetries {
			return nil, &StatusError{Method: req.Method, Path: req.URL.Path, Code: http.StatusTooManyRequests}
		}

		retryDelay := c.rateLimitBaseDelay * (1 << attempt)

		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				retryDelay = seconds
			}
		}

		logging.Warn().
			Dur("retry_delay", retryDelay).
			Int("attempt", attempt+1).
			Int("max_retries", maxRateLimitRetries).
			Str("path", req.URL.Path).
			Msg("Plex API rate limited (HTTP 429), retrying")

		timer := time.NewTimer(retryDelay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
