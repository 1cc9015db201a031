// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package logging provides the process-wide zerolog logger.
//
// # Quick Start
//
//	closer, err := logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	    File:   "/logs/defaulterr.log",
//	})
//	defer closer.Close()
//
//	logging.Info().Msg("Server starting")
//	logging.Error().Err(err).Int("part_id", id).Msg("Update failed")
//
//	// Inside a run: every line carries run_id
//	ctx = logging.WithRunID(ctx, logging.GenerateRunID())
//	logging.Ctx(ctx).Info().Str("library", name).Msg("Walking library")
//
// Console format is the default since the service is usually watched through
// `docker logs`; the optional file copy is always JSON.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging
