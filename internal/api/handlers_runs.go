// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/models"
	"github.com/tomtom215/defaulterr/internal/orchestrator"
)

// TriggerRun queues a run
// POST /api/v1/runs/{mode}
//
// The run executes in the background; the response carries its run id,
// which appears as run_id on every log line of that run.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	mode, err := orchestrator.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidMode, err.Error(), nil)
		return
	}

	runID, err := h.orchestrator.Trigger(mode)
	if errors.Is(err, orchestrator.ErrBusy) {
		respondError(w, r, http.StatusConflict, CodeRunInProgress, err.Error(), nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInvalidRequest, "Could not queue run", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("mode", string(mode)).Str("run_id", runID).Msg("Manual run queued")
	respondSuccess(w, r, http.StatusAccepted, models.RunAccepted{RunID: runID, Mode: string(mode)})
}
