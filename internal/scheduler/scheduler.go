// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package scheduler turns the configured cron expression into run triggers.
//
// Exactly one schedule is active: either the full run expression or the
// partial run expression. A tick that fires while a run is still in progress
// or queued is skipped rather than stacked.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/metrics"
	"github.com/tomtom215/defaulterr/internal/orchestrator"
)

// Trigger queues runs. Satisfied by *orchestrator.Orchestrator.
type Trigger interface {
	TriggerIfIdle(mode orchestrator.Mode) (string, bool)
}

// Scheduler fires one cron entry.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	expr    string
	mode    orchestrator.Mode
	trigger Trigger
	logger  zerolog.Logger
	started bool
}

// Validate reports whether expr is a standard 5-field cron expression or
// descriptor (@daily, @every 1h).
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// New creates a scheduler that triggers mode on every match of expr.
func New(expr string, mode orchestrator.Mode, trigger Trigger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	logger := logging.WithComponent("scheduler")
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger: logger})),
		expr:    expr,
		mode:    mode,
		trigger: trigger,
		logger:  logger,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Start begins firing. ctx is unused beyond the call; Stop ends the schedule.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.cron.Start()
	s.started = true

	s.logger.Info().
		Str("cron", s.expr).
		Str("mode", string(s.mode)).
		Time("next_run", s.nextLocked()).
		Msg("Scheduler started")
	return nil
}

// Stop halts the schedule and waits for a firing tick to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// Next returns the next firing time, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Mode returns the run mode this schedule triggers.
func (s *Scheduler) Mode() orchestrator.Mode {
	return s.mode
}

func (s *Scheduler) tick() {
	runID, ok := s.trigger.TriggerIfIdle(s.mode)
	if !ok {
		metrics.RecordRun(string(s.mode), "skipped", 0)
		s.logger.Warn().Str("mode", string(s.mode)).Msg("Previous run still in progress, skipping scheduled run")
		return
	}
	s.logger.Info().Str("mode", string(s.mode)).Str("run_id", runID).Msg("Scheduled run queued")
}

// cronLogger routes robfig/cron's internal logging to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
