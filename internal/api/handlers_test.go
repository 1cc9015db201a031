// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/defaulterr/internal/library"
	"github.com/tomtom215/defaulterr/internal/models"
	"github.com/tomtom215/defaulterr/internal/orchestrator"
	"github.com/tomtom215/defaulterr/internal/registry"
)

type fakeOrchestrator struct {
	events     []orchestrator.Event
	result     orchestrator.WebhookResult
	webhookErr error
	triggered  []orchestrator.Mode
	triggerErr error
	status     orchestrator.Status
	delay      time.Duration
}

func (f *fakeOrchestrator) HandleWebhook(_ context.Context, ev orchestrator.Event) (orchestrator.WebhookResult, error) {
	time.Sleep(f.delay)
	f.events = append(f.events, ev)
	return f.result, f.webhookErr
}

func (f *fakeOrchestrator) Trigger(mode orchestrator.Mode) (string, error) {
	if f.triggerErr != nil {
		return "", f.triggerErr
	}
	f.triggered = append(f.triggered, mode)
	return "run-42", nil
}

func (f *fakeOrchestrator) Status() orchestrator.Status {
	return f.status
}

type fakeInventory struct {
	libraries []library.Library
	users     []registry.User
}

func (f fakeInventory) Libraries() []library.Library { return f.libraries }
func (f fakeInventory) Users() []registry.User       { return f.users }

func newTestRouter(t *testing.T, orch *fakeOrchestrator, cfg *ChiMiddlewareConfig) http.Handler {
	t.Helper()
	inv := fakeInventory{
		libraries: []library.Library{{ID: "1", Name: "Movies", Kind: library.KindMovie}},
		users:     []registry.User{{Name: "owner", Owner: true}, {Name: "alice"}},
	}
	if cfg == nil {
		cfg = &ChiMiddlewareConfig{RateLimitDisabled: true}
	}
	return NewRouter(NewHandler(orch, inv, "test"), NewChiMiddleware(cfg)).SetupChi()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     orchestrator.WebhookResult
		err        error
		wantStatus int
		wantCode   string
		wantEvent  *orchestrator.Event
	}{
		{
			name:       "applied",
			body:       `{"type":"movie","libraryId":"1","mediaId":"123"}`,
			result:     orchestrator.WebhookResult{Outcome: orchestrator.OutcomeApplied, Parts: 1},
			wantStatus: http.StatusOK,
			wantEvent:  &orchestrator.Event{Type: "movie", LibraryID: "1", MediaID: "123"},
		},
		{
			name:       "numeric ids",
			body:       `{"type":"episode","libraryId":2,"mediaId":456}`,
			result:     orchestrator.WebhookResult{Outcome: orchestrator.OutcomeNotRelevant},
			wantStatus: http.StatusOK,
			wantEvent:  &orchestrator.Event{Type: "episode", LibraryID: "2", MediaID: "456"},
		},
		{
			name:       "malformed json",
			body:       `{"type":`,
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "missing media id",
			body:       `{"type":"movie","libraryId":"1"}`,
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeValidation,
		},
		{
			name:       "processing failure",
			body:       `{"type":"show","libraryId":"1","mediaId":"9"}`,
			err:        errors.New("plex unreachable"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeWebhookFailed,
		},
		{
			name:       "rejected event",
			body:       `{"type":"movie","libraryId":"1","mediaId":"x"}`,
			err:        fmt.Errorf("%w: bad id", orchestrator.ErrWebhookRequest),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &fakeOrchestrator{result: tt.result, webhookErr: tt.err}
			rec := do(t, newTestRouter(t, orch, nil), http.MethodPost, "/webhook", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
				}
			} else if resp.Status != "success" {
				t.Errorf("status = %q", resp.Status)
			}
			if tt.wantEvent != nil {
				if len(orch.events) != 1 || orch.events[0] != *tt.wantEvent {
					t.Errorf("events = %+v, want %+v", orch.events, *tt.wantEvent)
				}
			}
			if resp.Metadata.RequestID == "" {
				t.Error("expected request id in metadata")
			}
		})
	}
}

func TestWebhook_OutcomeInBody(t *testing.T) {
	orch := &fakeOrchestrator{result: orchestrator.WebhookResult{Outcome: orchestrator.OutcomeNotRelevant, Parts: 3}}
	rec := do(t, newTestRouter(t, orch, nil), http.MethodPost, "/webhook", `{"type":"season","libraryId":"1","mediaId":"5"}`)

	var body struct {
		Data models.WebhookResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Outcome != "not_relevant" || body.Data.Parts != 3 {
		t.Errorf("data = %+v", body.Data)
	}
}

func TestWebhook_OutlastsWriteTimeout(t *testing.T) {
	orch := &fakeOrchestrator{
		result: orchestrator.WebhookResult{Outcome: orchestrator.OutcomeApplied, Parts: 1},
		delay:  200 * time.Millisecond,
	}
	srv := httptest.NewUnstartedServer(newTestRouter(t, orch, nil))
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/webhook", "application/json",
		strings.NewReader(`{"type":"movie","libraryId":"1","mediaId":"5"}`))
	if err != nil {
		t.Fatalf("POST /webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Data models.WebhookResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Outcome != string(orchestrator.OutcomeApplied) {
		t.Errorf("outcome = %q, want %q", body.Data.Outcome, orchestrator.OutcomeApplied)
	}
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		err        error
		wantStatus int
	}{
		{"full", "full", nil, http.StatusAccepted},
		{"partial", "partial", nil, http.StatusAccepted},
		{"clean", "clean", nil, http.StatusAccepted},
		{"dry", "dry", nil, http.StatusAccepted},
		{"unknown mode", "everything", nil, http.StatusBadRequest},
		{"webhook mode rejected", "webhook", nil, http.StatusBadRequest},
		{"busy", "full", orchestrator.ErrBusy, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &fakeOrchestrator{triggerErr: tt.err}
			rec := do(t, newTestRouter(t, orch, nil), http.MethodPost, "/api/v1/runs/"+tt.mode, "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				return
			}

			var body struct {
				Data models.RunAccepted `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Data.RunID != "run-42" || body.Data.Mode != tt.mode {
				t.Errorf("data = %+v", body.Data)
			}
			if len(orch.triggered) != 1 || string(orch.triggered[0]) != tt.mode {
				t.Errorf("triggered = %v", orch.triggered)
			}
		})
	}
}

func TestTriggerRun_WrongMethod(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeOrchestrator{}, nil), http.MethodGet, "/api/v1/runs/full", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	last := time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC)
	orch := &fakeOrchestrator{status: orchestrator.Status{
		Active:     true,
		LastMode:   orchestrator.ModePartial,
		LastRunAt:  last,
		LastResult: "success",
	}}
	rec := do(t, newTestRouter(t, orch, nil), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Data models.HealthStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := models.HealthStatus{
		Status:     "healthy",
		Version:    "test",
		Libraries:  1,
		Users:      2,
		RunActive:  true,
		LastRunAt:  "2026-10-14T03:00:00Z",
		LastResult: "success",
	}
	if body.Data != want {
		t.Errorf("health = %+v, want %+v", body.Data, want)
	}
}

func TestHealth_DegradedWithoutLibraries(t *testing.T) {
	h := NewRouter(NewHandler(&fakeOrchestrator{}, fakeInventory{}, "test"), nil).SetupChi()
	rec := do(t, h, http.MethodGet, "/healthz", "")

	var body struct {
		Data models.HealthStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || body.Data.Status != "degraded" {
		t.Errorf("status %d, health %+v", rec.Code, body.Data)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeOrchestrator{}, nil), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected runtime metrics in output")
	}
}

func TestNotFound(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeOrchestrator{}, nil), http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Error == nil || resp.Error.Code != CodeNotFound {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRateLimit(t *testing.T) {
	orch := &fakeOrchestrator{result: orchestrator.WebhookResult{Outcome: orchestrator.OutcomeNotRelevant}}
	h := newTestRouter(t, orch, &ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	body := `{"type":"movie","libraryId":"1","mediaId":"1"}`
	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodPost, "/webhook", body); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}

	rec := do(t, h, http.MethodPost, "/webhook", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Error == nil || resp.Error.Code != CodeRateLimited {
		t.Errorf("error = %+v", resp.Error)
	}

	// Health checks are never limited.
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}
