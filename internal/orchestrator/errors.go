// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package orchestrator

import (
	"errors"
	"fmt"

	"github.com/tomtom215/defaulterr/internal/config"
)

// Error taxonomy
var (
	// ErrConfiguration marks invalid configuration, including a configured
	// library of an unsupported kind. Fatal at startup.
	ErrConfiguration = config.ErrInvalid

	// ErrAuth marks a configured token rejected by the server. Fatal at startup.
	ErrAuth = errors.New("authentication failed")

	// ErrUpstreamFetch marks a failed Plex read that could not be degraded.
	ErrUpstreamFetch = errors.New("plex fetch failed")

	// ErrWebhookRequest marks a malformed inbound webhook payload.
	ErrWebhookRequest = errors.New("invalid webhook request")

	// ErrBusy is returned by Trigger when the run queue is full.
	ErrBusy = errors.New("a run is already in progress or queued")
)

// FatalError stops the process. It wraps exhausted write retries, rejected
// tokens and an unusable library map.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is, or wraps, a *FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
