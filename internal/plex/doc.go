// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package plex talks to Plex Media Server and plex.tv.
//
// Client covers the server endpoints the sync engine needs: library
// listings, item metadata with its Part/Stream tree, token probes and the
// per-user default stream write. TVClient resolves shared users to their
// server access tokens.
//
// # Error Handling
//
// Non-2xx responses are returned as *StatusError. IsForbidden and
// IsUnauthorized classify them. HTTP 429 responses are retried inside the
// client with exponential backoff and never reach the caller unless retries
// run out.
//
// # Usage
//
//	client := plex.NewClient("http://localhost:32400", ownerToken, plex.Options{
//	    RequestInterval: 50 * time.Millisecond,
//	})
//	sections, err := client.LibrarySections(ctx)
//
//	audio, subs := 1234, 0
//	err = client.SetDefaultStreams(ctx, userToken, partID, &audio, &subs)
package plex
