// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package models

import "time"

// APIResponse is the envelope of every JSON endpoint.
//
// Example:
//
//	{
//	  "status": "success",
//	  "data": {"run_id": "3f2a9c1e", "mode": "partial"},
//	  "metadata": {"timestamp": "2026-10-14T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunAccepted is returned when a manual run has been queued
type RunAccepted struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
}

// WebhookResult reports what a webhook request did
type WebhookResult struct {
	Outcome string `json:"outcome"`
	Parts   int    `json:"parts"`
	Updates int    `json:"updates"`
}

// HealthStatus is the body of GET /healthz
type HealthStatus struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Libraries  int    `json:"libraries"`
	Users      int    `json:"users"`
	RunActive  bool   `json:"run_active"`
	LastRunAt  string `json:"last_run_at,omitempty"`
	LastResult string `json:"last_result,omitempty"`
}
