// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts. It is used for the startup library listing and for
// every default stream write; running out of attempts is reported as
// *ExhaustedError, which callers treat as fatal.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tomtom215/defaulterr/internal/logging"
)

// Policy bounds an operation to Attempts tries spaced Delay apart.
type Policy struct {
	// Attempts includes the first try. Values below 1 mean 1.
	Attempts int

	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err (or anything it wraps) is an *ExhaustedError.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Permanent marks err as not worth retrying. Do returns it unwrapped
// immediately instead of an *ExhaustedError.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a Permanent error, ctx is done, or
// the attempts run out. fn receives the 1-based attempt number.
func (p Policy) Do(ctx context.Context, op string, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		return struct{}{}, fn(attempt)
	}

	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", wait).
			Msg("Operation failed, retrying")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}

	// backoff.Retry unwraps permanent errors; stopping before the last
	// attempt can only mean fn asked not to retry.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	if attempt < attempts {
		return err
	}

	return &ExhaustedError{Op: op, Attempts: attempt, Last: err}
}
