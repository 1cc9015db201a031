// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/defaulterr/internal/logging"
)

// Scheduler is the Start/Stop lifecycle of *scheduler.Scheduler.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts the cron scheduler to suture's Serve pattern.
// Start spawns the cron goroutine; Serve then blocks until ctx is done and
// stops the scheduler, waiting for a tick in progress to return.
type SchedulerService struct {
	scheduler Scheduler
	name      string
}

// NewSchedulerService wraps s.
func NewSchedulerService(s Scheduler) *SchedulerService {
	return &SchedulerService{
		scheduler: s,
		name:      "scheduler",
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	logging.Debug().Msg("Scheduler stopped")
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *SchedulerService) String() string {
	return s.name
}
