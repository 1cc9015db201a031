// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/defaulterr/internal/models"
)

// Kind is a Plex library section type.
type Kind string

// Supported library kinds. Music and photo libraries carry no selectable
// audio/subtitle defaults and are rejected at configuration time.
const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// Valid reports whether the kind can be synchronized.
func (k Kind) Valid() bool {
	return k == KindMovie || k == KindShow
}

// Item kinds, as reported in metadata and webhook payloads.
const (
	ItemMovie   = "movie"
	ItemShow    = "show"
	ItemSeason  = "season"
	ItemEpisode = "episode"
)

// ErrUnsupportedItem is returned by Resolve for item kinds it cannot expand.
var ErrUnsupportedItem = errors.New("unsupported item type")

// ErrInvalidMediaID is returned by Resolve for ids that are not rating keys.
var ErrInvalidMediaID = errors.New("invalid media id")

// ErrStructuralData marks an item whose metadata lacks a part or streams.
// Such items are logged and skipped, never returned to callers.
var ErrStructuralData = errors.New("malformed item metadata")

// Library is one configured Plex library section.
type Library struct {
	ID   string
	Name string
	Kind Kind
}

func (l Library) String() string {
	return fmt.Sprintf("%s (%s, id %s)", l.Name, l.Kind, l.ID)
}

// Item is a leaf media item (movie or episode) that owns a part.
type Item struct {
	ID        string
	Kind      string
	Title     string
	UpdatedAt int64
}

// Source is the subset of the Plex client the walker reads from.
type Source interface {
	SectionItems(ctx context.Context, sectionID string) ([]models.PlexMetadata, error)
	Metadata(ctx context.Context, ratingKey string) (*models.PlexMetadata, error)
	Children(ctx context.Context, ratingKey string) ([]models.PlexMetadata, error)
}

func itemFrom(m models.PlexMetadata) Item {
	return Item{
		ID:        m.RatingKey,
		Kind:      m.Type,
		Title:     m.DisplayTitle(),
		UpdatedAt: m.UpdatedAt,
	}
}
