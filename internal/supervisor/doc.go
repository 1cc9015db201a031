// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package supervisor provides process supervision for Defaulterr using suture v4.

# Overview

Long-running components are organized into two layers:

	RootSupervisor ("defaulterr")
	├── JobsSupervisor ("jobs-layer")
	│   ├── Orchestrator (run queue)
	│   └── SchedulerService (if a cron expression is configured)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. A service that must
not be restarted returns an error wrapping suture.ErrDoNotRestart; the
orchestrator does this after a fatal run error, and main exits non-zero
once it sees the error on Orchestrator.Fatal.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddJobService(orch)
	tree.AddJobService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

# Logging

Supervisor events (service failures, restarts, backoff) are logged through
sutureslog. Pass logging.NewSlogLogger() so they end up in the zerolog
output with everything else.

# See Also

  - internal/supervisor/services: service wrappers
  - github.com/thejerf/suture/v4
*/
package supervisor
