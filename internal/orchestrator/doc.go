// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package orchestrator composes the walker, matcher, dispatcher and watermark
store into runs.

# Modes

  - full: walk every item of every configured library and apply the matches
  - partial: walk only items updated after the library's stored watermark,
    probe which users can read the library, then advance the watermark
  - clean: a partial run that ignores the stored watermark
  - dry: a full run that only logs what would change

The dry_run configuration flag turns every mode, and webhook events, into a
dry pass. Dry passes never write watermarks.

# Lifecycle

Startup verifies every configured token, resolves shared users from plex.tv
and loads the library map, retrying the listing before giving up. Runs are
queued with Trigger (or TriggerIfIdle for scheduled ticks) and executed one
at a time by Serve, which is meant to run under a suture supervisor:

	o := orchestrator.New(cfg, client, reg, store)
	if err := o.Startup(ctx); err != nil {
	    return err // *FatalError
	}
	tree.AddJobService(o)
	o.Trigger(orchestrator.ModePartial)

Webhook events are handled synchronously by HandleWebhook and may overlap a
queued run. They only read the registry and never touch watermarks.

# Errors

Item level fetch failures are logged and skipped. Errors that must stop the
process (rejected tokens, an unusable library map, write retries that ran
out) are returned as *FatalError and the first one is also delivered on
Fatal(). The orchestrator never exits the process itself.
*/
package orchestrator
