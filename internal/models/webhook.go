// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package models

// Webhook media types
const (
	WebhookTypeMovie   = "movie"
	WebhookTypeEpisode = "episode"
	WebhookTypeSeason  = "season"
	WebhookTypeShow    = "show"
)

// WebhookRequest is the body of a "recently added" notification, as sent by a
// Tautulli webhook agent configured with:
//
//	{"type": "{media_type}", "libraryId": "{section_id}", "mediaId": "{rating_key}"}
type WebhookRequest struct {
	Type      string     `json:"type" validate:"required"`
	LibraryID FlexString `json:"libraryId" validate:"required"`
	MediaID   FlexString `json:"mediaId" validate:"required"`
}
