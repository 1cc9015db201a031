// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package api provides the HTTP surface of Defaulterr using the Chi router.

Endpoints:

	POST /webhook               Tautulli "recently added" notification
	POST /api/v1/runs/{mode}    queue a full, partial, clean or dry run (202)
	GET  /healthz               run state and registry sizes
	GET  /metrics               Prometheus metrics

Webhook:

The body names one item:

	{"type": "episode", "libraryId": "2", "mediaId": "12345"}

The endpoint answers 200 both when updates were applied and when the event
was not relevant (library without filters, nothing matched). Malformed
payloads and processing failures answer 500 so the sender can log them.

Middleware:

Every route gets a request id and panic recovery. The webhook and run routes
are rate limited per client IP with go-chi/httprate and instrumented with
Prometheus. /healthz and /metrics are not rate limited.
*/
package api
