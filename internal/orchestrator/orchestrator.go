// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/defaulterr/internal/dispatch"
	"github.com/tomtom215/defaulterr/internal/library"
	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/registry"
	"github.com/tomtom215/defaulterr/internal/retry"
	"github.com/tomtom215/defaulterr/internal/rules"
)

// maxQueued bounds the runs waiting behind the active one.
const maxQueued = 4

// Plex is the part of the Plex client the orchestrator drives.
type Plex interface {
	library.Source
	dispatch.Writer
	CheckAccess(ctx context.Context, token string) error
	CheckLibraryAccess(ctx context.Context, token, sectionID string) (bool, error)
}

// Watermarks persists per-library progress of partial runs.
type Watermarks interface {
	Load() (map[string]int64, error)
	Save(ctx context.Context, marks map[string]int64) (map[string]int64, error)
}

// Config holds the validated settings the orchestrator needs.
type Config struct {
	DryRun       bool
	Filters      []rules.LibraryFilters
	Groups       map[string][]string
	Dispatch     dispatch.Config
	LibraryRetry retry.Policy
}

// Status is a snapshot for health reporting.
type Status struct {
	Active     bool
	Queued     int
	LastMode   Mode
	LastRunAt  time.Time
	LastResult string
}

type request struct {
	mode  Mode
	runID string
}

// Orchestrator runs full, partial, clean and dry passes over the configured
// libraries and handles webhook events. Mode runs are serialized: the Serve
// loop takes them off a queue one at a time. Webhook events never touch the
// watermark and run alongside mode runs.
type Orchestrator struct {
	plex       Plex
	registry   *registry.Registry
	walker     *library.Walker
	dispatcher *dispatch.Dispatcher
	watermarks Watermarks
	cfg        Config

	runMu sync.Mutex
	queue chan request

	stateMu sync.Mutex
	pending int
	status  Status

	fatal     chan error
	fatalOnce sync.Once
}

// New wires an orchestrator.
func New(cfg Config, client Plex, reg *registry.Registry, marks Watermarks) *Orchestrator {
	return &Orchestrator{
		plex:       client,
		registry:   reg,
		walker:     library.NewWalker(client),
		dispatcher: dispatch.New(client, reg, cfg.Groups, cfg.Dispatch),
		watermarks: marks,
		cfg:        cfg,
		queue:      make(chan request, maxQueued),
		fatal:      make(chan error, 1),
	}
}

// Fatal delivers the first fatal error. The host decides how to stop.
func (o *Orchestrator) Fatal() <-chan error {
	return o.fatal
}

// fail wraps err as a *FatalError (unless it already is one) and reports it.
func (o *Orchestrator) fail(op string, err error) error {
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		fatal = &FatalError{Op: op, Err: err}
	}
	o.fatalOnce.Do(func() {
		o.fatal <- fatal
	})
	return fatal
}

// Startup verifies the configured tokens, resolves users and loads the
// library map. Every error it returns is a *FatalError.
func (o *Orchestrator) Startup(ctx context.Context) error {
	log := logging.Ctx(ctx)

	for _, u := range o.registry.StaticUsers() {
		if err := o.plex.CheckAccess(ctx, u.Token); err != nil {
			return o.fail("verify tokens", fmt.Errorf("%w: user %q (token %s): %w",
				ErrAuth, u.Name, logging.SanitizeToken(u.Token), err))
		}
		log.Debug().Str("user", u.Name).Msg("Token verified")
	}
	log.Info().Int("users", len(o.registry.StaticUsers())).Msg("Configured tokens verified")

	if err := o.registry.RefreshUsers(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not resolve shared users, continuing with configured users")
	}

	err := o.cfg.LibraryRetry.Do(ctx, "list libraries", func(int) error {
		err := o.registry.RefreshLibraries(ctx)
		if errors.Is(err, registry.ErrInvalidLibrary) {
			return retry.Permanent(fmt.Errorf("%w: %w", ErrConfiguration, err))
		}
		return err
	})
	if err != nil {
		return o.fail("load libraries", err)
	}

	for _, lib := range o.registry.Libraries() {
		log.Info().Str("library", lib.Name).Str("library_id", lib.ID).Str("kind", string(lib.Kind)).
			Msg("Library configured")
	}
	return nil
}

// Trigger queues a run and returns its id. It fails with ErrBusy when the
// queue is full.
func (o *Orchestrator) Trigger(mode Mode) (string, error) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.enqueueLocked(mode)
}

// TriggerIfIdle queues a run only when nothing is running or queued.
// Scheduled ticks use it so that a slow run is never stacked up.
func (o *Orchestrator) TriggerIfIdle(mode Mode) (string, bool) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if o.pending > 0 {
		return "", false
	}
	id, err := o.enqueueLocked(mode)
	return id, err == nil
}

func (o *Orchestrator) enqueueLocked(mode Mode) (string, error) {
	req := request{mode: mode, runID: logging.GenerateRunID()}
	select {
	case o.queue <- req:
		o.pending++
		return req.runID, nil
	default:
		return "", ErrBusy
	}
}

// Serve implements suture.Service. It executes queued runs one at a time
// until ctx is cancelled or a run fails fatally.
func (o *Orchestrator) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-o.queue:
			_, err := o.Run(logging.WithRunID(ctx, req.runID), req.mode)

			o.stateMu.Lock()
			o.pending--
			o.stateMu.Unlock()

			if IsFatal(err) {
				return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
			}
		}
	}
}

func (o *Orchestrator) String() string {
	return "orchestrator"
}

// Status returns the current run state.
func (o *Orchestrator) Status() Status {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	s := o.status
	s.Queued = len(o.queue)
	return s
}

func (o *Orchestrator) setActive(active bool) {
	o.stateMu.Lock()
	o.status.Active = active
	o.stateMu.Unlock()
}

func (o *Orchestrator) recordResult(mode Mode, result string, at time.Time) {
	o.stateMu.Lock()
	o.status.LastMode = mode
	o.status.LastRunAt = at
	o.status.LastResult = result
	o.stateMu.Unlock()
}
