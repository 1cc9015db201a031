// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: assigns an X-Request-ID and stores it for logging.Ctx
  - PrometheusMetrics: request count and latency, labelled by chi route pattern

Both are written as func(http.HandlerFunc) http.HandlerFunc and adapted to
chi with a one-line wrapper in the api package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

RequestID must run first so that handlers and later middleware log with the
request id attached.
*/
package middleware
