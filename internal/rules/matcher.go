// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package rules

import "strings"

// Selection is the stream a RuleSet picked.
type Selection struct {
	StreamID int
	Label    string
}

// Defaults holds the per-track result of SelectDefaults. A nil field means
// the track's default is left untouched.
type Defaults struct {
	Audio     *Selection
	Subtitles *Selection

	// Chained records which track's RuleSet was replaced by on_match.
	Chained StreamType
}

// SelectDefaults picks at most one audio and one subtitle stream.
//
// Audio is evaluated first. When the matching audio rule carries
// on_match.subtitles, that list replaces the subtitle RuleSet for this call.
// Otherwise a subtitle match carrying on_match.audio replaces the audio
// RuleSet and audio is evaluated again. Chained rules never chain further.
func SelectDefaults(streams []Stream, audio, subtitles *RuleSet) Defaults {
	audioStreams := ofType(streams, StreamAudio)
	subtitleStreams := ofType(streams, StreamSubtitles)

	var out Defaults

	audioSel, audioRule := evaluate(audio, audioStreams)
	out.Audio = audioSel

	if audioRule != nil && audioRule.OnMatch.Subtitles != nil {
		out.Subtitles, _ = evaluate(audioRule.OnMatch.Subtitles, subtitleStreams)
		out.Chained = StreamSubtitles
		return out
	}

	subSel, subRule := evaluate(subtitles, subtitleStreams)
	out.Subtitles = subSel

	if subRule != nil && subRule.OnMatch.Audio != nil {
		out.Audio, _ = evaluate(subRule.OnMatch.Audio, audioStreams)
		out.Chained = StreamAudio
	}

	return out
}

// PlanPart computes the pending update for a part. It returns false when the
// part is not eligible or no track matched.
func PlanPart(part Part, filters TrackFilters) (PendingUpdate, Defaults, bool) {
	if !part.Eligible() {
		return PendingUpdate{}, Defaults{}, false
	}

	defaults := SelectDefaults(part.Streams, filters.Audio, filters.Subtitles)
	update := PendingUpdate{PartID: part.ID, ItemID: part.ItemID, Title: part.Title}
	if defaults.Audio != nil {
		id := defaults.Audio.StreamID
		update.AudioStreamID = &id
	}
	if defaults.Subtitles != nil {
		id := defaults.Subtitles.StreamID
		update.SubtitleStreamID = &id
	}
	if update.Empty() {
		return PendingUpdate{}, defaults, false
	}
	return update, defaults, true
}

// evaluate scans rules top to bottom and streams in input order.
// It returns the first match and the rule that produced it.
func evaluate(set *RuleSet, streams []Stream) (*Selection, *Rule) {
	if set == nil {
		return nil, nil
	}
	if set.Disabled {
		return &Selection{StreamID: DisabledStreamID, Label: DisabledToken}, nil
	}
	for i := range set.Rules {
		rule := &set.Rules[i]
		for _, s := range streams {
			if rule.matches(s) {
				return &Selection{StreamID: s.ID, Label: s.Label()}, rule
			}
		}
	}
	return nil, nil
}

// matches applies include (all fields, all substrings) then exclude (any field, any substring).
// Comparison is case-insensitive substring containment.
func (r *Rule) matches(s Stream) bool {
	for field, needles := range r.Include {
		value, ok := s.Attributes[field]
		if !ok || value == "" {
			return false
		}
		value = strings.ToLower(value)
		for _, needle := range needles {
			if !strings.Contains(value, strings.ToLower(needle)) {
				return false
			}
		}
	}
	for field, needles := range r.Exclude {
		value, ok := s.Attributes[field]
		if !ok || value == "" {
			continue
		}
		value = strings.ToLower(value)
		for _, needle := range needles {
			if needle != "" && strings.Contains(value, strings.ToLower(needle)) {
				return false
			}
		}
	}
	return true
}

func ofType(streams []Stream, t StreamType) []Stream {
	out := make([]Stream, 0, len(streams))
	for _, s := range streams {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
