// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package dispatch applies pending default stream updates for every user of
// a group.
//
// Calls are sent in fixed-size batches. Calls inside a batch run
// concurrently; batches run one after another with a delay in between. Each
// call is retried on its own. A call that runs out of attempts stops the
// dispatch and its *retry.ExhaustedError is returned; the caller treats it
// as fatal.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/metrics"
	"github.com/tomtom215/defaulterr/internal/plex"
	"github.com/tomtom215/defaulterr/internal/registry"
	"github.com/tomtom215/defaulterr/internal/retry"
	"github.com/tomtom215/defaulterr/internal/rules"
)

// Writer sets the default streams of a part on behalf of a user.
type Writer interface {
	SetDefaultStreams(ctx context.Context, token string, partID int, audioStreamID, subtitleStreamID *int) error
}

// Members expands group members into users for a library.
type Members interface {
	Members(members []string, libraryID string) (users []registry.User, missing, denied []string)
}

// Update is one planned change for one group of one library.
type Update struct {
	Library   string
	LibraryID string
	Group     string
	Pending   rules.PendingUpdate
}

// Report summarizes a dispatch.
type Report struct {
	// Calls is the number of distinct (part, user) writes planned.
	Calls int

	Succeeded int
	Failed    int

	// Forbidden counts calls that saw at least one 403.
	Forbidden int

	// Skipped counts group members that were unknown or had no library access.
	Skipped int
}

// Config tunes a Dispatcher.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
	Retry      retry.Policy
}

// Dispatcher fans updates out to users.
type Dispatcher struct {
	writer  Writer
	members Members
	groups  map[string][]string
	cfg     Config
}

// New creates a dispatcher. groups maps group name to its configured members.
func New(writer Writer, members Members, groups map[string][]string, cfg Config) *Dispatcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Dispatcher{writer: writer, members: members, groups: groups, cfg: cfg}
}

// call is one write for one user.
type call struct {
	update Update
	user   registry.User
}

// Apply sends every update. Individual failures end up in the report; only
// an exhausted retry or a cancelled context is returned as an error, and no
// further batch is started after one.
func (d *Dispatcher) Apply(ctx context.Context, updates []Update) (Report, error) {
	calls, skipped := d.plan(ctx, updates)
	report := Report{Calls: len(calls), Skipped: skipped}
	if len(calls) == 0 {
		return report, nil
	}

	log := logging.Ctx(ctx)
	log.Info().Int("calls", len(calls)).Int("batch_size", d.cfg.BatchSize).Msg("Applying default stream updates")

	for start := 0; start < len(calls); start += d.cfg.BatchSize {
		if start > 0 && d.cfg.BatchDelay > 0 {
			timer := time.NewTimer(d.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return report, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+d.cfg.BatchSize, len(calls))
		if err := d.runBatch(ctx, calls[start:end], &report); err != nil {
			return report, err
		}
	}

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("forbidden", report.Forbidden).
		Int("skipped", report.Skipped).
		Msg("Default stream updates applied")

	return report, nil
}

// plan resolves users at call time and drops duplicate (part, user) writes.
// When two groups target the same user and part, the later group wins.
func (d *Dispatcher) plan(ctx context.Context, updates []Update) ([]call, int) {
	log := logging.Ctx(ctx)

	type key struct {
		part int
		user string
	}
	index := make(map[key]int)
	var calls []call
	skipped := 0

	for _, u := range updates {
		if u.Pending.Empty() {
			continue
		}
		members, ok := d.groups[u.Group]
		if !ok {
			log.Warn().Str("group", u.Group).Str("library", u.Library).Msg("Update for unknown group ignored")
			continue
		}

		users, missing, denied := d.members.Members(members, u.LibraryID)
		for _, name := range missing {
			skipped++
			log.Warn().Str("user", name).Str("group", u.Group).Msg("Group member has no known token, skipping")
		}
		for _, name := range denied {
			skipped++
			log.Debug().Str("user", name).Str("group", u.Group).Str("library", u.Library).
				Msg("User has no access to library, skipping")
		}

		for _, user := range users {
			k := key{part: u.Pending.PartID, user: user.Name}
			if i, dup := index[k]; dup {
				log.Debug().Str("user", user.Name).Int("part_id", k.part).
					Str("group", u.Group).Str("previous_group", calls[i].update.Group).
					Msg("User is in several groups for this part, later group wins")
				calls[i] = call{update: u, user: user}
				continue
			}
			index[k] = len(calls)
			calls = append(calls, call{update: u, user: user})
		}
	}
	return calls, skipped
}

type outcome struct {
	ok        bool
	forbidden bool
}

func (d *Dispatcher) runBatch(ctx context.Context, batch []call, report *Report) error {
	results := make([]outcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range batch {
		g.Go(func() error {
			res, err := d.send(gctx, c)
			results[i] = res
			return err
		})
	}
	err := g.Wait()

	for _, res := range results {
		if res.ok {
			report.Succeeded++
		} else {
			report.Failed++
		}
		if res.forbidden {
			report.Forbidden++
		}
	}
	return err
}

// send performs one write under the retry policy.
func (d *Dispatcher) send(ctx context.Context, c call) (outcome, error) {
	p := c.update.Pending
	log := logging.Ctx(ctx).With().
		Str("library", c.update.Library).
		Str("group", c.update.Group).
		Str("user", c.user.Name).
		Str("title", p.Title).
		Int("part_id", p.PartID).
		Logger()

	var res outcome
	started := time.Now()
	op := fmt.Sprintf("set default streams for part %d (user %s)", p.PartID, c.user.Name)

	err := d.cfg.Retry.Do(ctx, op, func(attempt int) error {
		if attempt > 1 {
			metrics.UpdateRetries.Inc()
		}
		err := d.writer.SetDefaultStreams(ctx, c.user.Token, p.PartID, p.AudioStreamID, p.SubtitleStreamID)
		if plex.IsForbidden(err) {
			res.forbidden = true
			log.Warn().Int("attempt", attempt).
				Msg("Plex refused the change (403), the user may lack access or be blocked by a rating restriction")
		}
		return err
	})

	if err != nil {
		result := "failure"
		if plex.IsForbidden(err) {
			result = "forbidden"
		}
		metrics.RecordUpdate(result, time.Since(started))
		log.Error().Err(err).Msg("Failed to update default streams")
		return res, err
	}

	res.ok = true
	metrics.RecordUpdate("success", time.Since(started))
	ev := log.Info()
	if p.AudioStreamID != nil {
		ev = ev.Int("audio_stream_id", *p.AudioStreamID)
	}
	if p.SubtitleStreamID != nil {
		ev = ev.Int("subtitle_stream_id", *p.SubtitleStreamID)
	}
	ev.Msg("Updated default streams")
	return res, nil
}
