// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package services adapts components with their own lifecycle to
suture.Service so they can run in the supervisor tree.

# Services

HTTPServerService runs *http.Server (ListenAndServe blocks, Shutdown stops
it). SchedulerService runs the cron scheduler (Start spawns, Stop waits).

The orchestrator needs no wrapper: it implements Serve(ctx) error itself.

Every wrapper follows the same contract:

  - Serve blocks until ctx is canceled or the component fails
  - a component failure is returned so suture restarts it
  - on cancellation the component is stopped and ctx.Err() is returned
  - String names the service in supervisor logs

# Example

	sched, err := scheduler.New(expr, orchestrator.ModePartial, orch)
	if err != nil {
	    return err
	}
	tree.AddJobService(services.NewSchedulerService(sched))
*/
package services
