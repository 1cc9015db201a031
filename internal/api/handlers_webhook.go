// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/models"
	"github.com/tomtom215/defaulterr/internal/orchestrator"
)

// Webhook handles a "recently added" notification
// POST /webhook
//
// Tautulli setup: add a webhook agent triggered on "Recently Added" with the
// JSON data {"type": "{media_type}", "libraryId": "{section_id}", "mediaId": "{rating_key}"}.
//
// Responses:
//   - 200: updates applied, dry run, or event not relevant
//   - 500: malformed payload or processing failure
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context())
	log.Info().Msg("Webhook received")

	// Processing waits for the item's metadata and every user update, which
	// can outlast the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn().Err(err).Msg("Could not clear write deadline")
	}

	var req models.WebhookRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInvalidRequest, "Error getting request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusInternalServerError, apiErr.Code, apiErr.Message, errors.New(apiErr.Message))
		return
	}

	res, err := h.orchestrator.HandleWebhook(r.Context(), orchestrator.Event{
		Type:      req.Type,
		LibraryID: req.LibraryID.String(),
		MediaID:   req.MediaID.String(),
	})
	if err != nil {
		code := CodeWebhookFailed
		if errors.Is(err, orchestrator.ErrWebhookRequest) {
			code = CodeInvalidRequest
		}
		respondError(w, r, http.StatusInternalServerError, code, "Error processing webhook", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, models.WebhookResult{
		Outcome: string(res.Outcome),
		Parts:   res.Parts,
		Updates: res.Dispatch.Succeeded,
	})
}
