// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/defaulterr/internal/models"
)

// Health reports run state and what the registry knows.
// GET /healthz
//
// Status is "degraded" while no configured library has been found on the
// server; the process still answers 200 so that liveness probes pass.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	libraries := len(h.inventory.Libraries())
	st := h.orchestrator.Status()

	health := models.HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Libraries:  libraries,
		Users:      len(h.inventory.Users()),
		RunActive:  st.Active,
		LastResult: st.LastResult,
	}
	if libraries == 0 {
		health.Status = "degraded"
	}
	if !st.LastRunAt.IsZero() {
		health.LastRunAt = st.LastRunAt.UTC().Format(time.RFC3339)
	}

	respondSuccess(w, r, http.StatusOK, health)
}
