// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package rules

import (
	"fmt"
	"strconv"
)

// StreamType mirrors Plex's numeric streamType field.
type StreamType int

const (
	StreamVideo     StreamType = 1
	StreamAudio     StreamType = 2
	StreamSubtitles StreamType = 3
)

// String returns the track name used in configuration and logs.
func (t StreamType) String() string {
	switch t {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	case StreamSubtitles:
		return "subtitles"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// DisabledStreamID is the subtitleStreamID Plex interprets as "no subtitles".
const DisabledStreamID = 0

// DisabledToken is the literal accepted in place of a subtitle rule list.
const DisabledToken = "disabled"

// Stream is one audio or subtitle track of a Part. Attributes hold the Plex
// stream fields as strings, in their original case.
type Stream struct {
	ID         int
	Type       StreamType
	Attributes map[string]string
}

// Label returns the most descriptive title available for logging.
func (s Stream) Label() string {
	for _, key := range []string{"extendedDisplayTitle", "displayTitle", "title", "language"} {
		if v := s.Attributes[key]; v != "" {
			return v
		}
	}
	return fmt.Sprintf("stream %d", s.ID)
}

// Part is the playable file a default-track change is applied to.
type Part struct {
	ID      int
	ItemID  string
	Title   string
	Streams []Stream
}

// Eligible reports whether the part has anything to choose between.
func (p Part) Eligible() bool {
	count := 0
	for _, s := range p.Streams {
		if s.Type != StreamVideo {
			count++
		}
	}
	return count > 1
}

// Rule is one include/exclude predicate with optional cross-track chaining.
// Include and Exclude map a stream attribute name to lowercased substrings.
type Rule struct {
	Include map[string][]string
	Exclude map[string][]string
	OnMatch OnMatch
}

// OnMatch holds rule lists that replace the sibling track's RuleSet for the
// current part once the owning rule matches.
type OnMatch struct {
	Audio     *RuleSet
	Subtitles *RuleSet
}

// IsZero reports whether no chaining is configured.
func (o OnMatch) IsZero() bool {
	return o.Audio == nil && o.Subtitles == nil
}

// RuleSet is an ordered rule list for one track type. Order is significant:
// the first rule that finds a stream wins.
type RuleSet struct {
	Rules    []Rule
	Disabled bool
}

// Disabled returns the subtitle RuleSet that always selects stream 0.
func Disabled() *RuleSet {
	return &RuleSet{Disabled: true}
}

// TrackFilters is the filter configuration of one group in one library.
type TrackFilters struct {
	Audio     *RuleSet
	Subtitles *RuleSet
}

// GroupFilters binds a group name to its filters.
type GroupFilters struct {
	Group   string
	Filters TrackFilters
}

// LibraryFilters lists the groups configured for one library, in a stable order.
type LibraryFilters struct {
	Library string
	Groups  []GroupFilters
}

// PendingUpdate is the default-track change computed for one part.
// A nil stream ID leaves that track untouched; a SubtitleStreamID of 0 disables subtitles.
type PendingUpdate struct {
	PartID           int
	ItemID           string
	Title            string
	AudioStreamID    *int
	SubtitleStreamID *int
}

// Empty reports whether the update would change nothing.
func (u PendingUpdate) Empty() bool {
	return u.AudioStreamID == nil && u.SubtitleStreamID == nil
}
