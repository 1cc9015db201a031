// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/defaulterr/internal/dispatch"
	"github.com/tomtom215/defaulterr/internal/library"
	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/metrics"
	"github.com/tomtom215/defaulterr/internal/retry"
	"github.com/tomtom215/defaulterr/internal/rules"
)

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Mode      Mode
	DryRun    bool
	Libraries int
	Items     int
	Matched   int
	Dispatch  dispatch.Report

	// Watermarks holds the merged stored watermarks after a partial or clean
	// run. Nil for other modes and dry runs.
	Watermarks map[string]int64
}

// Run executes one pass in the given mode. Concurrent calls wait for each
// other. Item level failures are logged and skipped; the returned error is
// non-nil only when the run could not complete. Exhausted write retries are
// returned as *FatalError and also reported on Fatal().
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (Summary, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = logging.GenerateRunID()
		ctx = logging.WithRunID(ctx, runID)
	}

	dry := o.cfg.DryRun || mode == ModeDry
	summary := Summary{RunID: runID, Mode: mode, DryRun: dry}
	log := logging.Ctx(ctx).With().Str("mode", string(mode)).Bool("dry_run", dry).Logger()

	o.setActive(true)
	metrics.TrackRunActive(true)
	started := time.Now()
	defer func() {
		o.setActive(false)
		metrics.TrackRunActive(false)
	}()

	log.Info().Msg("Run started")

	err := o.run(ctx, mode, dry, &summary)

	result := "success"
	switch {
	case IsFatal(err):
		result = "fatal"
	case err != nil:
		result = "failure"
	}
	duration := time.Since(started)
	metrics.RecordRun(string(mode), result, duration)
	o.recordResult(mode, result, started)

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("result", result).
		Int("libraries", summary.Libraries).
		Int("items", summary.Items).
		Int("matched", summary.Matched).
		Int("updated", summary.Dispatch.Succeeded).
		Int("failed", summary.Dispatch.Failed).
		Dur("duration", duration).
		Msg("Run finished")

	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, mode Mode, dry bool, summary *Summary) error {
	var stored map[string]int64
	if mode == ModePartial {
		var err error
		if stored, err = o.watermarks.Load(); err != nil {
			return fmt.Errorf("load watermarks: %w", err)
		}
	}

	advanced := make(map[string]int64)

	for _, lf := range o.cfg.Filters {
		lib, ok := o.registry.LibraryByName(lf.Library)
		if !ok {
			logging.Ctx(ctx).Warn().Str("library", lf.Library).Msg("Library not on the server, skipping")
			continue
		}
		summary.Libraries++

		since := stored[lib.Name]
		if mode.tracksWatermark() {
			o.probeAccess(ctx, lib, lf)
		}

		updates, highest, err := o.planLibrary(ctx, lib, lf, since, summary)
		if err != nil {
			return err
		}

		if !dry {
			report, err := o.dispatcher.Apply(ctx, updates)
			addReport(&summary.Dispatch, report)
			if err != nil {
				if retry.IsExhausted(err) {
					return o.fail(fmt.Sprintf("update library %s", lib.Name), err)
				}
				return fmt.Errorf("update library %s: %w", lib.Name, err)
			}
		}

		if mode.tracksWatermark() && highest > since {
			advanced[lib.Name] = highest
		}
	}

	if !mode.tracksWatermark() || dry {
		return nil
	}
	if len(advanced) == 0 {
		logging.Ctx(ctx).Info().Msg("No updated items, watermarks unchanged")
		return nil
	}

	merged, err := o.watermarks.Save(ctx, advanced)
	if err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}
	for name, epoch := range merged {
		metrics.SetWatermark(name, epoch)
	}
	summary.Watermarks = merged
	logging.Ctx(ctx).Info().Interface("watermarks", advanced).Msg("Watermarks advanced")
	return nil
}

// planLibrary walks a library and computes the updates of every group. The
// returned epoch is the highest updatedAt seen, or since when nothing newer
// was found. It stays below the updatedAt of any item whose part fetch failed.
func (o *Orchestrator) planLibrary(ctx context.Context, lib library.Library, lf rules.LibraryFilters, since int64, summary *Summary) ([]dispatch.Update, int64, error) {
	log := logging.Ctx(ctx).With().Str("library", lib.Name).Logger()
	log.Info().Int64("since", since).Int("groups", len(lf.Groups)).Msg("Walking library")

	var updates []dispatch.Update
	highest := since
	// ceiling keeps the watermark below every item whose part could not be
	// fetched, so the next partial run sees it again.
	ceiling := int64(math.MaxInt64)

	for item := range o.walker.Items(ctx, lib, since) {
		summary.Items++
		if item.UpdatedAt > highest {
			highest = item.UpdatedAt
		}

		part, err := o.walker.Part(ctx, item)
		if err != nil && item.UpdatedAt-1 < ceiling {
			ceiling = item.UpdatedAt - 1
		}
		planned := planPart(ctx, lib, lf, part)
		if len(planned) > 0 {
			summary.Matched++
		}
		updates = append(updates, planned...)
	}

	// The walker stops early on cancellation; the partial result must not
	// advance the watermark.
	if err := ctx.Err(); err != nil {
		return nil, since, fmt.Errorf("walk library %s: %w", lib.Name, err)
	}

	if highest > ceiling {
		log.Warn().Int64("highest_updated_at", highest).Int64("held_at", max(ceiling, since)).
			Msg("Some items could not be fetched, holding watermark")
		highest = max(ceiling, since)
	}

	log.Info().Int("updates", len(updates)).Int64("highest_updated_at", highest).Msg("Library walked")
	return updates, highest, nil
}

// planPart runs the matcher for every group of a library against one part.
func planPart(ctx context.Context, lib library.Library, lf rules.LibraryFilters, part rules.Part) []dispatch.Update {
	if !part.Eligible() {
		metrics.PartsEvaluated.WithLabelValues(lib.Name, "ineligible").Inc()
		return nil
	}

	var out []dispatch.Update
	for _, gf := range lf.Groups {
		pending, defaults, ok := rules.PlanPart(part, gf.Filters)
		if !ok {
			metrics.PartsEvaluated.WithLabelValues(lib.Name, "unmatched").Inc()
			continue
		}
		metrics.PartsEvaluated.WithLabelValues(lib.Name, "matched").Inc()

		ev := logging.Ctx(ctx).Info().
			Str("library", lib.Name).
			Str("group", gf.Group).
			Str("item_id", part.ItemID).
			Int("part_id", part.ID).
			Str("title", part.Title)
		if defaults.Audio != nil {
			ev = ev.Str("audio", defaults.Audio.Label)
		}
		if defaults.Subtitles != nil {
			ev = ev.Str("subtitles", defaults.Subtitles.Label)
		}
		if defaults.Chained != 0 {
			ev = ev.Str("chained", defaults.Chained.String())
		}
		ev.Msg("Streams matched")

		out = append(out, dispatch.Update{
			Library:   lib.Name,
			LibraryID: lib.ID,
			Group:     gf.Group,
			Pending:   pending,
		})
	}
	return out
}

// probeAccess records which non-owner members of the library's groups can
// read it. Users that fail the probe are excluded from this library's
// dispatch until the next probe.
func (o *Orchestrator) probeAccess(ctx context.Context, lib library.Library, lf rules.LibraryFilters) {
	log := logging.Ctx(ctx).With().Str("library", lib.Name).Logger()

	var members []string
	for _, gf := range lf.Groups {
		members = append(members, o.cfg.Groups[gf.Group]...)
	}
	// An id that is never probed yields the unfiltered set.
	users, _, _ := o.registry.Members(members, "")

	access := make(map[string]bool, len(users))
	for _, u := range users {
		if u.Owner {
			continue
		}
		ok, err := o.plex.CheckLibraryAccess(ctx, u.Token, lib.ID)
		if err != nil {
			metrics.RecordFetchError("access")
			log.Warn().Err(err).Str("user", u.Name).Msg("Library access probe failed, excluding user")
			continue
		}
		if !ok {
			log.Info().Str("user", u.Name).Msg("User has no access to library, excluding")
			continue
		}
		access[u.Name] = true
	}
	o.registry.SetAccess(lib.ID, access)
}

func addReport(total *dispatch.Report, r dispatch.Report) {
	total.Calls += r.Calls
	total.Succeeded += r.Succeeded
	total.Failed += r.Failed
	total.Forbidden += r.Forbidden
	total.Skipped += r.Skipped
}
