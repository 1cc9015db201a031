// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package api

import (
	"context"
	"time"

	"github.com/tomtom215/defaulterr/internal/library"
	"github.com/tomtom215/defaulterr/internal/orchestrator"
	"github.com/tomtom215/defaulterr/internal/registry"
)

// Orchestrator is the part of *orchestrator.Orchestrator the handlers use.
type Orchestrator interface {
	HandleWebhook(ctx context.Context, ev orchestrator.Event) (orchestrator.WebhookResult, error)
	Trigger(mode orchestrator.Mode) (string, error)
	Status() orchestrator.Status
}

// Inventory reports what the registry currently knows.
type Inventory interface {
	Libraries() []library.Library
	Users() []registry.User
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_webhook.go: POST /webhook
//   - handlers_runs.go: POST /api/v1/runs/{mode}
//   - handlers_health.go: GET /healthz
//   - handlers_helpers.go: response and validation helpers
type Handler struct {
	orchestrator Orchestrator
	inventory    Inventory
	version      string
	startTime    time.Time
}

// NewHandler creates a new API handler.
//
// Example:
//
//	handler := api.NewHandler(orch, reg, version)
//	router := api.NewRouter(handler, api.NewChiMiddleware(nil))
//	srv := &http.Server{Addr: ":3184", Handler: router.SetupChi()}
func NewHandler(orch Orchestrator, inventory Inventory, version string) *Handler {
	return &Handler{
		orchestrator: orch,
		inventory:    inventory,
		version:      version,
		startTime:    time.Now(),
	}
}
