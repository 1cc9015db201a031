// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
client.go - Plex Media Server API Client

This file provides the Client struct and the Plex Media Server endpoints used
to read library content and to change the default streams of a part.

Client Features:
  - X-Plex-Token authentication (owner token for reads, caller token for writes)
  - Cooperative throttling of calls via golang.org/x/time/rate
  - Circuit breaker around library reads (sony/gobreaker)
  - Automatic rate limit handling with exponential backoff (HTTP 429)
  - JSON response parsing

API Methods in this file:
  - LibrarySections(): GET /library/sections
  - SectionItems(): GET /library/sections/{id}/all
  - Metadata(): GET /library/metadata/{id}
  - Children(): GET /library/metadata/{id}/children
  - Identity(): GET /identity
  - SetDefaultStreams(): POST /library/parts/{id}
  - CheckAccess(), CheckLibraryAccess(): token probes

Related Files:
  - request.go: HTTP request helpers and StatusError
  - circuit_breaker.go: breaker settings and metrics
  - tv.go: plex.tv shared server listing
*/

//nolint:staticcheck // File documentation, not package doc
package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/defaulterr/internal/models"
)

// DefaultTimeout is the HTTP client timeout when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ErrEmptyResponse is returned when Plex answers 200 without the expected metadata.
var ErrEmptyResponse = errors.New("plex returned no metadata")

// Client handles communication with Plex Media Server API
type Client struct {
	baseURL    string
	token      string
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitBreaker

	// rateLimitBaseDelay is the first 429 backoff step.
	rateLimitBaseDelay time.Duration
}

// Options tunes a Client. The zero value is usable.
type Options struct {
	// Timeout bounds each HTTP request (default 30s).
	Timeout time.Duration

	// RequestInterval is the minimum pause between calls. Zero disables throttling.
	RequestInterval time.Duration

	// ClientIdentifier is sent as X-Plex-Client-Identifier.
	ClientIdentifier string

	// HTTPClient overrides the HTTP client (Timeout is then ignored).
	HTTPClient *http.Client
}

// NewClient creates a new Plex API client
//
// Parameters:
//   - baseURL: Plex Media Server URL (e.g., "http://localhost:32400")
//   - token: owner X-Plex-Token used for every read call
func NewClient(baseURL, token string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}

	return &Client{
		baseURL:            baseURL,
		token:              token,
		clientID:           opts.ClientIdentifier,
		httpClient:         httpClient,
		limiter:            rate.NewLimiter(limit, 1),
		breaker:            newCircuitBreaker("plex-api"),
		rateLimitBaseDelay: time.Second,
	}
}

// LibrarySections lists every library section of the server
func (c *Client) LibrarySections(ctx context.Context) ([]models.PlexLibrarySection, error) {
	var resp models.PlexLibrarySectionsResponse
	if err := c.read(ctx, "sections", "/library/sections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Directory, nil
}

// SectionItems lists the top-level items of a section (movies or shows)
func (c *Client) SectionItems(ctx context.Context, sectionID string) ([]models.PlexMetadata, error) {
	var resp models.PlexMetadataResponse
	path := "/library/sections/" + url.PathEscape(sectionID) + "/all"
	if err := c.read(ctx, "items", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// Metadata fetches one item including its Media/Part/Stream tree
func (c *Client) Metadata(ctx context.Context, ratingKey string) (*models.PlexMetadata, error) {
	var resp models.PlexMetadataResponse
	path := "/library/metadata/" + url.PathEscape(ratingKey)
	if err := c.read(ctx, "metadata", path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("metadata %s: %w", ratingKey, ErrEmptyResponse)
	}
	return &resp.MediaContainer.Metadata[0], nil
}

// Children lists the seasons of a show or the episodes of a season
func (c *Client) Children(ctx context.Context, ratingKey string) ([]models.PlexMetadata, error) {
	var resp models.PlexMetadataResponse
	path := "/library/metadata/" + url.PathEscape(ratingKey) + "/children"
	if err := c.read(ctx, "children", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// Identity returns the server's machine identifier and version
func (c *Client) Identity(ctx context.Context) (*models.PlexIdentityContainer, error) {
	var resp models.PlexIdentityResponse
	if err := c.read(ctx, "identity", "/identity", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.MediaContainer, nil
}

// SetDefaultStreams changes the default audio and/or subtitle stream of a part
// for the user owning token. A nil id leaves that track untouched; a subtitle
// id of 0 disables subtitles.
//
// Any 2xx status is success. Other statuses return *StatusError.
func (c *Client) SetDefaultStreams(ctx context.Context, token string, partID int, audioStreamID, subtitleStreamID *int) error {
	query := url.Values{}
	if audioStreamID != nil {
		query.Set("audioStreamID", strconv.Itoa(*audioStreamID))
	}
	if subtitleStreamID != nil {
		query.Set("subtitleStreamID", strconv.Itoa(*subtitleStreamID))
	}
	if len(query) == 0 {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	return c.doRequest(ctx, requestConfig{
		method:     http.MethodPost,
		path:       "/library/parts/" + strconv.Itoa(partID),
		query:      query,
		token:      token,
		acceptJSON: true,
	}, nil)
}

// CheckAccess verifies that token is accepted by the server
func (c *Client) CheckAccess(ctx context.Context, token string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.doRequest(ctx, requestConfig{
		method:     http.MethodGet,
		path:       "/library/sections",
		token:      token,
		acceptJSON: true,
	}, nil)
}

// CheckLibraryAccess reports whether token can read a library section.
// 401, 403 and 404 mean no access; other failures are returned as errors.
func (c *Client) CheckLibraryAccess(ctx context.Context, token, sectionID string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	err := c.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   "/library/sections/" + url.PathEscape(sectionID) + "/all",
		query: url.Values{
			"X-Plex-Container-Start": {"0"},
			"X-Plex-Container-Size":  {"0"},
		},
		token:      token,
		acceptJSON: true,
	}, nil)

	var statusErr *StatusError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &statusErr) && statusErr.denied():
		return false, nil
	default:
		return false, err
	}
}
