// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package models defines the wire types exchanged with Plex Media Server,
plex.tv and webhook senders, plus the JSON envelopes of the HTTP API.

Key Components:

  - PlexLibrarySectionsResponse: GET /library/sections
  - PlexMetadataResponse: section listings, item metadata and children
  - PlexStream: a stream flattened into string attributes for rule matching
  - PlexSharedServersResponse: plex.tv shared_servers (XML)
  - WebhookRequest: inbound "recently added" notification
  - APIResponse: envelope for every JSON response

Types here carry no behavior beyond decoding helpers; conversion into the
rule model lives in internal/library.
*/
package models
