// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/defaulterr/internal/config"
	"github.com/tomtom215/defaulterr/internal/dispatch"
	"github.com/tomtom215/defaulterr/internal/models"
	"github.com/tomtom215/defaulterr/internal/registry"
	"github.com/tomtom215/defaulterr/internal/retry"
	"github.com/tomtom215/defaulterr/internal/rules"
	"github.com/tomtom215/defaulterr/internal/watermark"
)

const (
	ownerToken = "owner-tok"
	aliceToken = "alice-tok"
	moviesID   = "1"
)

type write struct {
	token  string
	partID int
	audio  int
}

type fakePlex struct {
	mu           sync.Mutex
	sections     []models.PlexLibrarySection
	items        map[string][]models.PlexMetadata
	badTokens    map[string]bool
	noAccess     map[string]bool
	writeErr     error
	metadataErr  map[string]error
	writes       []write
	sectionCalls int
}

func (f *fakePlex) LibrarySections(context.Context) ([]models.PlexLibrarySection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sectionCalls++
	return f.sections, nil
}

func (f *fakePlex) Identity(context.Context) (*models.PlexIdentityContainer, error) {
	return &models.PlexIdentityContainer{MachineIdentifier: "machine-1"}, nil
}

func (f *fakePlex) SectionItems(_ context.Context, sectionID string) ([]models.PlexMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[sectionID], nil
}

func (f *fakePlex) Metadata(_ context.Context, ratingKey string) (*models.PlexMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.metadataErr[ratingKey]; err != nil {
		return nil, err
	}
	for _, list := range f.items {
		for i := range list {
			if list[i].RatingKey == ratingKey {
				m := list[i]
				return &m, nil
			}
		}
	}
	return nil, errors.New("not found")
}

func (f *fakePlex) Children(context.Context, string) ([]models.PlexMetadata, error) {
	return nil, nil
}

func (f *fakePlex) SetDefaultStreams(_ context.Context, token string, partID int, audio, _ *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	w := write{token: token, partID: partID}
	if audio != nil {
		w.audio = *audio
	}
	f.writes = append(f.writes, w)
	return nil
}

func (f *fakePlex) CheckAccess(_ context.Context, token string) error {
	if f.badTokens[token] {
		return errors.New("401 unauthorized")
	}
	return nil
}

func (f *fakePlex) CheckLibraryAccess(_ context.Context, token, _ string) (bool, error) {
	return !f.noAccess[token], nil
}

func (f *fakePlex) recorded() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]write(nil), f.writes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].partID != out[j].partID {
			return out[i].partID < out[j].partID
		}
		return out[i].token < out[j].token
	})
	return out
}

func stream(id, streamType int, lang string) models.PlexStream {
	return models.PlexStream{ID: id, StreamType: streamType, Attributes: map[string]string{
		"languageCode": lang,
		"displayTitle": lang,
	}}
}

// movie builds a movie whose part id is 10*n and whose audio streams are
// 10*n+1 (eng) and 10*n+2 (jpn).
func movie(n int, updatedAt int64) models.PlexMetadata {
	part := 10 * n
	return models.PlexMetadata{
		RatingKey: "m" + string(rune('0'+n)),
		Type:      "movie",
		Title:     "Movie",
		UpdatedAt: updatedAt,
		Media: []models.PlexMedia{{
			ID: part,
			Part: []models.PlexPart{{
				ID: part,
				Stream: []models.PlexStream{
					stream(part+5, models.PlexStreamVideo, ""),
					stream(part+1, models.PlexStreamAudio, "eng"),
					stream(part+2, models.PlexStreamAudio, "jpn"),
				},
			}},
		}},
	}
}

type harness struct {
	o     *Orchestrator
	plex  *fakePlex
	store *watermark.Store
}

func newHarness(t *testing.T, plex *fakePlex, dryRun bool) *harness {
	t.Helper()

	if plex.sections == nil {
		plex.sections = []models.PlexLibrarySection{{Key: moviesID, Title: "Movies", Type: "movie"}}
	}

	lf, err := rules.ParseLibraryFilters("Movies", map[string]interface{}{
		"everyone": map[string]interface{}{
			"audio": []interface{}{
				map[string]interface{}{"include": map[string]interface{}{"languageCode": "jpn"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("ParseLibraryFilters() error = %v", err)
	}

	reg := registry.New(registry.Config{
		OwnerToken:   ownerToken,
		ManagedUsers: map[string]string{"alice": aliceToken},
		Libraries:    []string{"Movies"},
	}, plex, nil)

	store := watermark.NewStore(filepath.Join(t.TempDir(), "watermarks.json"))
	o := New(Config{
		DryRun:  dryRun,
		Filters: []rules.LibraryFilters{lf},
		Groups:  map[string][]string{"everyone": {registry.AllUsers}},
		Dispatch: dispatch.Config{
			BatchSize: 4,
			Retry:     retry.Policy{Attempts: 2, Delay: time.Millisecond},
		},
		LibraryRetry: retry.Policy{Attempts: 2, Delay: time.Millisecond},
	}, plex, reg, store)

	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}
	return &harness{o: o, plex: plex, store: store}
}

func TestRun_Full(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}}}
	h := newHarness(t, plex, false)

	summary, err := h.o.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []write{{token: aliceToken, partID: 10, audio: 12}, {token: ownerToken, partID: 10, audio: 12}}
	if got := plex.recorded(); !equalWrites(got, want) {
		t.Errorf("writes = %+v, want %+v", got, want)
	}
	if summary.Items != 1 || summary.Matched != 1 || summary.Dispatch.Succeeded != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RunID == "" {
		t.Error("expected a run id")
	}
	if summary.Watermarks != nil {
		t.Errorf("full run should not write watermarks, got %v", summary.Watermarks)
	}
}

func TestRun_SkipsSingleStreamParts(t *testing.T) {
	single := movie(1, 100)
	single.Media[0].Part[0].Stream = single.Media[0].Part[0].Stream[:2] // video + one audio
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {single}}}
	h := newHarness(t, plex, false)

	summary, err := h.o.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Matched != 0 || len(plex.recorded()) != 0 {
		t.Errorf("expected no updates, summary = %+v writes = %v", summary, plex.recorded())
	}
}

func TestRun_DryModeWritesNothing(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}}}
	h := newHarness(t, plex, false)

	summary, err := h.o.Run(context.Background(), ModeDry)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !summary.DryRun || summary.Matched != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if n := len(plex.recorded()); n != 0 {
		t.Errorf("dry run made %d writes", n)
	}
}

func TestRun_DryRunConfigAppliesToPartial(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}}}
	h := newHarness(t, plex, true)

	if _, err := h.o.Run(context.Background(), ModePartial); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := len(plex.recorded()); n != 0 {
		t.Errorf("dry run made %d writes", n)
	}
	marks, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(marks) != 0 {
		t.Errorf("dry run should not advance watermarks, got %v", marks)
	}
}

func TestRun_PartialWatermarkMonotonic(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{
		moviesID: {movie(1, 100), movie(2, 250), movie(3, 80)},
	}}
	h := newHarness(t, plex, false)

	first, err := h.o.Run(context.Background(), ModePartial)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if got := first.Watermarks["Movies"]; got != 250 {
		t.Errorf("watermark = %d, want 250", got)
	}
	if first.Dispatch.Succeeded != 6 {
		t.Errorf("first run updated %d, want 6", first.Dispatch.Succeeded)
	}

	second, err := h.o.Run(context.Background(), ModePartial)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Items != 0 || second.Dispatch.Calls != 0 {
		t.Errorf("second run should find nothing, got %+v", second)
	}

	marks, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if marks["Movies"] != 250 {
		t.Errorf("stored watermark = %d, want 250", marks["Movies"])
	}
}

func TestRun_PartialHoldsWatermarkOnFetchFailure(t *testing.T) {
	plex := &fakePlex{
		items: map[string][]models.PlexMetadata{
			moviesID: {movie(1, 100), movie(2, 250), movie(3, 180)},
		},
		metadataErr: map[string]error{"m3": fmt.Errorf("get metadata: %w", gobreaker.ErrOpenState)},
	}
	h := newHarness(t, plex, false)

	first, err := h.o.Run(context.Background(), ModePartial)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if got := first.Watermarks["Movies"]; got != 179 {
		t.Errorf("watermark = %d, want 179 (below the item that was not fetched)", got)
	}
	if first.Dispatch.Succeeded != 4 {
		t.Errorf("first run updated %d, want 4", first.Dispatch.Succeeded)
	}

	plex.mu.Lock()
	plex.metadataErr = nil
	plex.mu.Unlock()

	second, err := h.o.Run(context.Background(), ModePartial)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Items != 2 {
		t.Errorf("second run walked %d items, want 2", second.Items)
	}
	if got := second.Watermarks["Movies"]; got != 250 {
		t.Errorf("watermark = %d, want 250", got)
	}
	if len(plex.recorded()) != 8 {
		t.Errorf("writes = %+v, want the skipped movie applied on the second run", plex.recorded())
	}
}

func TestRun_CleanIgnoresWatermark(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}}}
	h := newHarness(t, plex, false)

	if _, err := h.store.Save(context.Background(), map[string]int64{"Movies": 500}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	summary, err := h.o.Run(context.Background(), ModeClean)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Items != 1 {
		t.Errorf("clean run should walk every item, got %d", summary.Items)
	}

	marks, _ := h.store.Load()
	if marks["Movies"] != 500 {
		t.Errorf("stored watermark = %d, want 500 (merge keeps the higher value)", marks["Movies"])
	}
}

func TestRun_PartialExcludesUsersWithoutAccess(t *testing.T) {
	plex := &fakePlex{
		items:    map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}},
		noAccess: map[string]bool{aliceToken: true},
	}
	h := newHarness(t, plex, false)

	summary, err := h.o.Run(context.Background(), ModePartial)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []write{{token: ownerToken, partID: 10, audio: 12}}
	if got := plex.recorded(); !equalWrites(got, want) {
		t.Errorf("writes = %+v, want %+v", got, want)
	}
	if summary.Dispatch.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Dispatch.Skipped)
	}
}

func TestRun_ExhaustedWritesAreFatal(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}}}
	h := newHarness(t, plex, false)
	plex.writeErr = errors.New("connection refused")

	_, err := h.o.Run(context.Background(), ModePartial)
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !retry.IsExhausted(err) {
		t.Errorf("expected exhausted retry inside %v", err)
	}

	select {
	case got := <-h.o.Fatal():
		if !IsFatal(got) {
			t.Errorf("Fatal() delivered %v", got)
		}
	default:
		t.Error("expected an error on Fatal()")
	}

	marks, _ := h.store.Load()
	if len(marks) != 0 {
		t.Errorf("failed run must not advance watermarks, got %v", marks)
	}
	if st := h.o.Status(); st.LastResult != "fatal" || st.Active {
		t.Errorf("status = %+v", st)
	}
}

func TestStartup_Errors(t *testing.T) {
	tests := []struct {
		name string
		plex *fakePlex
		want error
	}{
		{
			name: "rejected token",
			plex: &fakePlex{badTokens: map[string]bool{aliceToken: true}},
			want: ErrAuth,
		},
		{
			name: "unsupported library kind",
			plex: &fakePlex{sections: []models.PlexLibrarySection{{Key: "1", Title: "Movies", Type: "artist"}}},
			want: ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New(registry.Config{
				OwnerToken:   ownerToken,
				ManagedUsers: map[string]string{"alice": aliceToken},
				Libraries:    []string{"Movies"},
			}, tt.plex, nil)
			o := New(Config{LibraryRetry: retry.Policy{Attempts: 3, Delay: time.Millisecond}}, tt.plex, reg, nil)

			err := o.Startup(context.Background())
			if !IsFatal(err) {
				t.Fatalf("expected fatal error, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v in %v", tt.want, err)
			}
		})
	}
}

func TestHandleWebhook(t *testing.T) {
	tests := []struct {
		name       string
		event      Event
		want       Outcome
		wantErr    error
		wantWrites int
	}{
		{
			name:       "movie applied",
			event:      Event{Type: "movie", LibraryID: moviesID, MediaID: "1"},
			want:       OutcomeApplied,
			wantWrites: 2,
		},
		{
			name:  "unknown library",
			event: Event{Type: "movie", LibraryID: "99", MediaID: "1"},
			want:  OutcomeNotRelevant,
		},
		{
			name:  "unsupported type",
			event: Event{Type: "track", LibraryID: moviesID, MediaID: "1"},
			want:  OutcomeNotRelevant,
		},
		{
			name:    "missing media id",
			event:   Event{Type: "movie", LibraryID: moviesID},
			wantErr: ErrWebhookRequest,
		},
		{
			name:    "non numeric media id",
			event:   Event{Type: "movie", LibraryID: moviesID, MediaID: "abc"},
			wantErr: ErrWebhookRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := movie(1, 100)
			m.RatingKey = "1"
			plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {m}}}
			h := newHarness(t, plex, false)

			res, err := h.o.HandleWebhook(context.Background(), tt.event)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleWebhook() error = %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", res.Outcome, tt.want)
			}
			if n := len(plex.recorded()); n != tt.wantWrites {
				t.Errorf("writes = %d, want %d", n, tt.wantWrites)
			}
		})
	}
}

func TestHandleWebhook_RefreshesUnknownLibrary(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{}}
	h := newHarness(t, plex, false)
	before := plex.sectionCalls

	if _, err := h.o.HandleWebhook(context.Background(), Event{Type: "movie", LibraryID: "42", MediaID: "7"}); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if plex.sectionCalls != before+1 {
		t.Errorf("expected one library refresh, got %d", plex.sectionCalls-before)
	}
}

func TestHandleWebhook_DryRun(t *testing.T) {
	m := movie(1, 100)
	m.RatingKey = "1"
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {m}}}
	h := newHarness(t, plex, true)

	res, err := h.o.HandleWebhook(context.Background(), Event{Type: "movie", LibraryID: moviesID, MediaID: "1"})
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if res.Outcome != OutcomeDryRun || res.Updates != 1 {
		t.Errorf("result = %+v", res)
	}
	if n := len(plex.recorded()); n != 0 {
		t.Errorf("dry run made %d writes", n)
	}
}

func TestServe_RunsTriggeredRuns(t *testing.T) {
	plex := &fakePlex{items: map[string][]models.PlexMetadata{moviesID: {movie(1, 100)}}}
	h := newHarness(t, plex, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.o.Serve(ctx) }()

	id, err := h.o.Trigger(ModeFull)
	if err != nil || id == "" {
		t.Fatalf("Trigger() = %q, %v", id, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.o.Status().LastResult == "" {
		if time.Now().After(deadline) {
			t.Fatal("triggered run did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := h.o.Status(); st.LastMode != ModeFull || st.LastResult != "success" {
		t.Errorf("status = %+v", st)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestTrigger_Queueing(t *testing.T) {
	o := New(Config{}, &fakePlex{}, registry.New(registry.Config{OwnerToken: ownerToken}, &fakePlex{}, nil), nil)

	if _, err := o.Trigger(ModePartial); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if _, ok := o.TriggerIfIdle(ModePartial); ok {
		t.Error("TriggerIfIdle should skip while a run is queued")
	}
	for i := 1; i < maxQueued; i++ {
		if _, err := o.Trigger(ModeFull); err != nil {
			t.Fatalf("Trigger() %d error = %v", i, err)
		}
	}
	if _, err := o.Trigger(ModeFull); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if st := o.Status(); st.Queued != maxQueued {
		t.Errorf("Queued = %d, want %d", st.Queued, maxQueued)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"full", "partial", "clean", "dry"} {
		if m, err := ParseMode(s); err != nil || string(m) != s {
			t.Errorf("ParseMode(%q) = %q, %v", s, m, err)
		}
	}
	for _, s := range []string{"", "webhook", "FULL"} {
		if _, err := ParseMode(s); err == nil {
			t.Errorf("ParseMode(%q) should fail", s)
		}
	}
}

func TestStartupModes(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []Mode
	}{
		{"none", config.Config{}, nil},
		{"dry wins", config.Config{DryRun: true, FullRunOnStart: true}, []Mode{ModeDry}},
		{"all", config.Config{FullRunOnStart: true, PartialRunOnStart: true, CleanRunOnStart: true},
			[]Mode{ModeFull, ModePartial, ModeClean}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StartupModes(&tt.cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("StartupModes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("StartupModes()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func equalWrites(a, b []write) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
