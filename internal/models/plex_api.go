// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package models

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Plex REST API Models
// These structures represent responses from Plex Media Server REST API endpoints
// Documentation: https://plexapi.dev and https://www.plexopedia.com/plex-media-server/api/

// Plex stream types (streamType field).
const (
	PlexStreamVideo     = 1
	PlexStreamAudio     = 2
	PlexStreamSubtitles = 3
)

// ============================================================================
// Library Sections Models - GET /library/sections
// ============================================================================

// PlexLibrarySectionsResponse represents the response from GET /library/sections
type PlexLibrarySectionsResponse struct {
	MediaContainer PlexLibrarySectionsContainer `json:"MediaContainer"`
}

// PlexLibrarySectionsContainer wraps the list of library sections
type PlexLibrarySectionsContainer struct {
	Size      int                  `json:"size"`
	Directory []PlexLibrarySection `json:"Directory,omitempty"`
}

// PlexLibrarySection represents a single library section (Movies, TV Shows, etc.)
type PlexLibrarySection struct {
	Key       string `json:"key"`   // Section key/ID (used in URLs like /library/sections/{key})
	UUID      string `json:"uuid"`  // Unique section UUID
	Title     string `json:"title"` // Section name (e.g., "Movies", "Anime")
	Type      string `json:"type"`  // Section type: "movie", "show", "artist", "photo"
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// ============================================================================
// Metadata Models - GET /library/sections/{id}/all, /library/metadata/{id}[/children]
// ============================================================================

// PlexMetadataResponse is shared by section listings, item metadata and children
type PlexMetadataResponse struct {
	MediaContainer PlexMetadataContainer `json:"MediaContainer"`
}

// PlexMetadataContainer wraps metadata items
type PlexMetadataContainer struct {
	Size                int            `json:"size"`
	LibrarySectionID    FlexString     `json:"librarySectionID,omitempty"`
	LibrarySectionTitle string         `json:"librarySectionTitle,omitempty"`
	Metadata            []PlexMetadata `json:"Metadata,omitempty"`
}

// PlexMetadata represents a movie, show, season or episode
type PlexMetadata struct {
	RatingKey        string `json:"ratingKey"`                  // Unique item identifier
	ParentRatingKey  string `json:"parentRatingKey,omitempty"`  // Season for an episode
	Type             string `json:"type"`                       // movie, show, season, episode
	Title            string `json:"title"`                      // Item title
	ParentTitle      string `json:"parentTitle,omitempty"`      // Season name
	GrandparentTitle string `json:"grandparentTitle,omitempty"` // Show name
	Index            int    `json:"index,omitempty"`            // Episode or season number
	ParentIndex      int    `json:"parentIndex,omitempty"`      // Season number of an episode
	AddedAt          int64  `json:"addedAt,omitempty"`          // Unix timestamp
	UpdatedAt        int64  `json:"updatedAt,omitempty"`        // Unix timestamp, drives partial runs

	Media []PlexMedia `json:"Media,omitempty"`
}

// DisplayTitle returns "Show - S01E02 - Title" for episodes and the plain title otherwise
func (m PlexMetadata) DisplayTitle() string {
	if m.Type == "episode" && m.GrandparentTitle != "" {
		return fmt.Sprintf("%s - S%02dE%02d - %s", m.GrandparentTitle, m.ParentIndex, m.Index, m.Title)
	}
	return m.Title
}

// FirstPart returns the first part of the first media version, or nil
func (m PlexMetadata) FirstPart() *PlexPart {
	if len(m.Media) == 0 || len(m.Media[0].Part) == 0 {
		return nil
	}
	return &m.Media[0].Part[0]
}

// PlexMedia represents one media version of an item
type PlexMedia struct {
	ID   int        `json:"id"`
	Part []PlexPart `json:"Part,omitempty"`
}

// PlexPart represents the playable file of a media version
type PlexPart struct {
	ID     int          `json:"id"`
	File   string       `json:"file,omitempty"`
	Stream []PlexStream `json:"Stream,omitempty"`
}

// PlexStream is one video, audio or subtitle stream of a part. Plex returns a
// wide and version-dependent set of fields, so every field other than id and
// streamType is kept as a string attribute for rule matching.
type PlexStream struct {
	ID         int
	StreamType int
	Attributes map[string]string
}

// UnmarshalJSON flattens the stream object into Attributes.
func (s *PlexStream) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = PlexStream{Attributes: make(map[string]string, len(raw))}
	for key, value := range raw {
		str, ok := attributeString(value)
		if !ok {
			continue
		}
		switch key {
		case "id":
			id, err := strconv.Atoi(str)
			if err != nil {
				return fmt.Errorf("stream id %q: %w", str, err)
			}
			s.ID = id
		case "streamType":
			st, err := strconv.Atoi(str)
			if err != nil {
				return fmt.Errorf("stream type %q: %w", str, err)
			}
			s.StreamType = st
		default:
			s.Attributes[key] = str
		}
	}
	return nil
}

// MarshalJSON writes the flattened form back out (used by test fixtures).
func (s PlexStream) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Attributes)+2)
	for k, v := range s.Attributes {
		out[k] = v
	}
	out["id"] = s.ID
	out["streamType"] = s.StreamType
	return json.Marshal(out)
}

// attributeString renders scalar JSON values; nested objects and arrays are dropped.
func attributeString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	default:
		return "", false
	}
}

// ============================================================================
// Identity Model - GET /identity
// ============================================================================

// PlexIdentityResponse represents the response from /identity endpoint
type PlexIdentityResponse struct {
	MediaContainer PlexIdentityContainer `json:"MediaContainer"`
}

// PlexIdentityContainer wraps server identity information
type PlexIdentityContainer struct {
	MachineIdentifier string `json:"machineIdentifier"`
	Version           string `json:"version"`
}
