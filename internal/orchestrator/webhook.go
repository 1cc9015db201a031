// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/defaulterr/internal/dispatch"
	"github.com/tomtom215/defaulterr/internal/library"
	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/metrics"
	"github.com/tomtom215/defaulterr/internal/retry"
	"github.com/tomtom215/defaulterr/internal/rules"
)

// Outcome is the result of a webhook event.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeDryRun      Outcome = "dry_run"
	OutcomeNotRelevant Outcome = "not_relevant"
)

// Event names one item that was added or changed.
type Event struct {
	Type      string
	LibraryID string
	MediaID   string
}

// WebhookResult reports what an event did.
type WebhookResult struct {
	Outcome  Outcome
	Library  string
	Parts    int
	Updates  int
	Dispatch dispatch.Report
}

// HandleWebhook resolves the event's item to its parts and applies the
// library's filters to them. Events for libraries without filters, item
// types without parts, and items where nothing matched are not relevant.
//
// Errors wrap ErrWebhookRequest for malformed events. Exhausted write
// retries are returned as *FatalError.
func (o *Orchestrator) HandleWebhook(ctx context.Context, ev Event) (WebhookResult, error) {
	started := time.Now()
	res, err := o.handleWebhook(ctx, ev)

	outcome := string(res.Outcome)
	switch {
	case errors.Is(err, ErrWebhookRequest):
		outcome = "invalid"
	case err != nil:
		outcome = "failed"
	}
	metrics.WebhooksTotal.WithLabelValues(outcome).Inc()
	if res.Outcome == OutcomeApplied || err != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.RecordRun(string(ModeWebhook), result, time.Since(started))
	}
	return res, err
}

func (o *Orchestrator) handleWebhook(ctx context.Context, ev Event) (WebhookResult, error) {
	ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
	ev.LibraryID = strings.TrimSpace(ev.LibraryID)
	ev.MediaID = strings.TrimSpace(ev.MediaID)

	if ev.Type == "" || ev.LibraryID == "" || ev.MediaID == "" {
		return WebhookResult{}, fmt.Errorf("%w: type, libraryId and mediaId are required", ErrWebhookRequest)
	}

	log := logging.Ctx(ctx).With().
		Str("type", ev.Type).
		Str("library_id", ev.LibraryID).
		Str("media_id", ev.MediaID).
		Logger()
	notRelevant := WebhookResult{Outcome: OutcomeNotRelevant}

	lib, ok := o.registry.LibraryByID(ev.LibraryID)
	if !ok {
		log.Debug().Msg("Library id unknown, refreshing library map")
		if err := o.registry.RefreshLibraries(ctx); err != nil {
			log.Warn().Err(err).Msg("Library map refresh failed")
		}
		if lib, ok = o.registry.LibraryByID(ev.LibraryID); !ok {
			log.Info().Msg("Library has no filters, event not relevant")
			return notRelevant, nil
		}
	}
	notRelevant.Library = lib.Name
	log = log.With().Str("library", lib.Name).Logger()

	lf, ok := o.filtersFor(lib.Name)
	if !ok {
		log.Info().Msg("Library has no filters, event not relevant")
		return notRelevant, nil
	}

	items, err := o.walker.Resolve(ctx, ev.Type, ev.MediaID)
	switch {
	case errors.Is(err, library.ErrUnsupportedItem):
		log.Info().Msg("Item type has no streams, event not relevant")
		return notRelevant, nil
	case errors.Is(err, library.ErrInvalidMediaID):
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrWebhookRequest, err)
	case err != nil:
		return WebhookResult{}, fmt.Errorf("%w: resolve %s %s: %w", ErrUpstreamFetch, ev.Type, ev.MediaID, err)
	}

	res := WebhookResult{Library: lib.Name}
	var updates []dispatch.Update
	for _, item := range items {
		// A part that could not be fetched is logged and has no streams.
		part, _ := o.walker.Part(ctx, item)
		res.Parts++
		updates = append(updates, planPart(ctx, lib, lf, part)...)
	}
	res.Updates = len(updates)

	if len(updates) == 0 {
		log.Info().Int("parts", res.Parts).Msg("No streams to update, event not relevant")
		notRelevant.Parts = res.Parts
		return notRelevant, nil
	}

	if o.cfg.DryRun {
		log.Info().Int("updates", res.Updates).Msg("Dry run, updates not applied")
		res.Outcome = OutcomeDryRun
		return res, nil
	}

	report, err := o.dispatcher.Apply(ctx, updates)
	res.Dispatch = report
	if err != nil {
		if retry.IsExhausted(err) {
			return res, o.fail("webhook update", err)
		}
		return res, fmt.Errorf("apply webhook updates: %w", err)
	}

	res.Outcome = OutcomeApplied
	log.Info().Int("parts", res.Parts).Int("updated", report.Succeeded).Int("failed", report.Failed).
		Msg("Webhook processed")
	return res, nil
}

func (o *Orchestrator) filtersFor(name string) (lf rules.LibraryFilters, ok bool) {
	for _, f := range o.cfg.Filters {
		if f.Library == name {
			return f, true
		}
	}
	return lf, false
}
