// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package library walks Plex libraries down to the parts whose default
// streams get changed.
//
// Movie libraries yield their movies. Show libraries are expanded show,
// season, episode. Items are produced lazily through iter.Seq so a walk
// can stop early and every walk reads fresh data from the server.
package library
