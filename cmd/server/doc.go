// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Command server runs Defaulterr, which sets the default audio and subtitle
streams of Plex media for every user in a group, according to per-library
rules.

# Usage

	defaulterr [config.yaml]

Without an argument the config file is taken from CONFIG_PATH, then from
config.yaml or config.yml in the working directory, then
/config/config.yaml and /config/config.yml. Any scalar
setting can be overridden by environment variable (PLEX_SERVER_URL,
UPDATE_BATCH_SIZE, LOG_LEVEL, ...).

# Startup

 1. Configuration: Koanf v2 (defaults, YAML file, environment)
 2. Logging: zerolog, console or JSON, with an optional file copy
 3. Token check: every configured token must be accepted by the server
 4. Users: managed users from the config plus friends from plex.tv
 5. Libraries: configured libraries are looked up (bounded retry)
 6. Supervisor tree: orchestrator, scheduler and HTTP server
 7. Startup runs: dry, or full/partial/clean as enabled

Any error in steps 1 to 5 exits with status 1.

# Runtime

	RootSupervisor ("defaulterr")
	├── JobsSupervisor ("jobs-layer")
	│   ├── Orchestrator
	│   └── SchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Endpoints:

	POST /webhook             Tautulli "recently added" notification
	POST /api/v1/runs/{mode}  queue a full, partial, clean or dry run
	GET  /healthz             run state and registry counts
	GET  /metrics             Prometheus metrics

# Exit Codes

	0  stopped by SIGINT or SIGTERM
	1  configuration, authentication or library error at startup, or a
	   default stream update that failed after every retry
*/
package main
