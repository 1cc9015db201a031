// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
tv.go - plex.tv Shared Server Client

Friends the owner shares the server with do not appear in the config file.
Their server-scoped access tokens come from plex.tv:

  - GET https://plex.tv/api/servers/{machineId}/shared_servers

The endpoint is keyed by the client identifier of the calling application and
only answers in XML.
*/

package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/defaulterr/internal/metrics"
	"github.com/tomtom215/defaulterr/internal/models"
)

const (
	// TVBaseURL is the base URL for plex.tv API endpoints
	TVBaseURL = "https://plex.tv"

	// TVClientTimeout is the HTTP client timeout for plex.tv requests
	TVClientTimeout = 30 * time.Second

	// ProductName is sent as X-Plex-Product
	ProductName = "Defaulterr"
)

// TVClient handles communication with plex.tv for shared users
type TVClient struct {
	baseURL    string
	token      string
	clientID   string
	httpClient *http.Client
}

// TVClientConfig contains configuration for creating a TVClient
type TVClientConfig struct {
	BaseURL  string // defaults to TVBaseURL
	Token    string // owner token
	ClientID string // X-Plex-Client-Identifier
}

// NewTVClient creates a new client for plex.tv API
func NewTVClient(cfg TVClientConfig) *TVClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = TVBaseURL
	}
	return &TVClient{
		baseURL:    baseURL,
		token:      cfg.Token,
		clientID:   cfg.ClientID,
		httpClient: &http.Client{Timeout: TVClientTimeout},
	}
}

// SharedServers lists the shares of the server identified by machineID
func (c *TVClient) SharedServers(ctx context.Context, machineID string) ([]models.PlexSharedServer, error) {
	path := "/api/servers/" + url.PathEscape(machineID) + "/shared_servers"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", ProductName)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFetchError("shared_servers")
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		metrics.RecordFetchError("shared_servers")
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}

	var listing models.PlexSharedServersResponse
	if err := xml.NewDecoder(resp.Body).Decode(&listing); err != nil {
		metrics.RecordFetchError("shared_servers")
		return nil, fmt.Errorf("decode shared servers: %w", err)
	}
	return listing.SharedServers, nil
}

// SharedUserTokens maps each shared user's name to their access token.
// Entries without a name or token are dropped.
func (c *TVClient) SharedUserTokens(ctx context.Context, machineID string) (map[string]string, error) {
	servers, err := c.SharedServers(ctx, machineID)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]string, len(servers))
	for _, s := range servers {
		if s.Username == "" || s.AccessToken == "" {
			continue
		}
		tokens[s.Username] = s.AccessToken
	}
	return tokens, nil
}
