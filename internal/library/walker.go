// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package library

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/metrics"
	"github.com/tomtom215/defaulterr/internal/rules"
)

// Walker traverses libraries and loads the streams of their parts.
// Fetch failures never abort a walk: the affected library, show, season or
// item is logged and skipped.
type Walker struct {
	source Source
}

// NewWalker creates a walker reading from source.
func NewWalker(source Source) *Walker {
	return &Walker{source: source}
}

// Items lazily yields every leaf item of lib whose updatedAt is greater than
// since. since <= 0 yields everything. Each call re-fetches from Plex.
//
// Show libraries are walked show, season, episode. The filter applies to
// episodes, since a show's own updatedAt does not track its episodes.
func (w *Walker) Items(ctx context.Context, lib Library, since int64) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		log := logging.Ctx(ctx).With().Str("library", lib.Name).Logger()

		top, err := w.source.SectionItems(ctx, lib.ID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list library items, skipping library")
			return
		}

		changed := func(it Item) bool {
			return since <= 0 || it.UpdatedAt > since
		}

		for _, m := range top {
			if ctx.Err() != nil {
				return
			}

			if lib.Kind != KindShow {
				if it := itemFrom(m); changed(it) && !yield(it) {
					return
				}
				continue
			}

			for ep := range w.episodes(ctx, m.RatingKey, m.Title) {
				if changed(ep) && !yield(ep) {
					return
				}
			}
		}
	}
}

// episodes yields the episodes of a show by walking its seasons.
func (w *Walker) episodes(ctx context.Context, showID, showTitle string) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		seasons, err := w.source.Children(ctx, showID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("show_id", showID).Str("show", showTitle).
				Msg("Failed to list seasons, skipping show")
			return
		}

		for _, season := range seasons {
			if ctx.Err() != nil {
				return
			}
			for ep := range w.seasonEpisodes(ctx, season.RatingKey) {
				if !yield(ep) {
					return
				}
			}
		}
	}
}

func (w *Walker) seasonEpisodes(ctx context.Context, seasonID string) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		children, err := w.source.Children(ctx, seasonID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("season_id", seasonID).
				Msg("Failed to list episodes, skipping season")
			return
		}
		for _, m := range children {
			if m.Type != "" && m.Type != ItemEpisode {
				continue
			}
			if !yield(itemFrom(m)) {
				return
			}
		}
	}
}

// Part loads the first part of an item with its non-video streams. On a fetch
// failure or a malformed response it logs and returns a Part without streams,
// which is never eligible for an update. Only a failed fetch is returned as an
// error, since the item may have streams once Plex answers again.
func (w *Walker) Part(ctx context.Context, item Item) (rules.Part, error) {
	empty := rules.Part{ItemID: item.ID, Title: item.Title}
	log := logging.Ctx(ctx).With().Str("item_id", item.ID).Str("title", item.Title).Logger()

	meta, err := w.source.Metadata(ctx, item.ID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch item metadata, treating as no streams")
		return empty, fmt.Errorf("fetch metadata of %s: %w", item.ID, err)
	}

	title := meta.DisplayTitle()
	if title == "" {
		title = item.Title
	}

	part := meta.FirstPart()
	if part == nil {
		metrics.RecordFetchError("structure")
		log.Warn().Err(ErrStructuralData).Msg("Item has no media part, skipping")
		return rules.Part{ItemID: item.ID, Title: title}, nil
	}
	if len(part.Stream) == 0 {
		metrics.RecordFetchError("structure")
		log.Warn().Err(ErrStructuralData).Int("part_id", part.ID).Msg("Part has no streams, skipping")
		return rules.Part{ID: part.ID, ItemID: item.ID, Title: title}, nil
	}

	streams := make([]rules.Stream, 0, len(part.Stream))
	for _, s := range part.Stream {
		t := rules.StreamType(s.StreamType)
		if t != rules.StreamAudio && t != rules.StreamSubtitles {
			continue
		}
		streams = append(streams, rules.Stream{ID: s.ID, Type: t, Attributes: s.Attributes})
	}

	return rules.Part{ID: part.ID, ItemID: item.ID, Title: title, Streams: streams}, nil
}

// Resolve expands a webhook item into its leaf items: a movie or episode is
// itself, a season is its episodes and a show is every episode of every
// season. Unlike Items, listing failures are returned to the caller.
func (w *Walker) Resolve(ctx context.Context, kind, id string) ([]Item, error) {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidMediaID, id)
	}

	switch kind {
	case ItemMovie, ItemEpisode:
		return []Item{{ID: id, Kind: kind}}, nil

	case ItemSeason:
		children, err := w.source.Children(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list episodes of season %s: %w", id, err)
		}
		items := make([]Item, 0, len(children))
		for _, m := range children {
			items = append(items, itemFrom(m))
		}
		return items, nil

	case ItemShow:
		seasons, err := w.source.Children(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list seasons of show %s: %w", id, err)
		}
		var items []Item
		for _, season := range seasons {
			children, err := w.source.Children(ctx, season.RatingKey)
			if err != nil {
				return nil, fmt.Errorf("list episodes of season %s: %w", season.RatingKey, err)
			}
			for _, m := range children {
				items = append(items, itemFrom(m))
			}
		}
		return items, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedItem, kind)
	}
}
