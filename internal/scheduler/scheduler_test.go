// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/defaulterr/internal/orchestrator"
)

type fakeTrigger struct {
	mu    sync.Mutex
	busy  bool
	modes []orchestrator.Mode
}

func (f *fakeTrigger) TriggerIfIdle(mode orchestrator.Mode) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return "", false
	}
	f.modes = append(f.modes, mode)
	return "run-1", true
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"@every 1h", false},
		{"", true},
		{"0 3 * *", true},
		{"61 * * * *", true},
		{"not a cron", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := Validate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNew_InvalidExpression(t *testing.T) {
	if _, err := New("every day", orchestrator.ModeFull, &fakeTrigger{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTick(t *testing.T) {
	trig := &fakeTrigger{}
	s, err := New("0 3 * * *", orchestrator.ModePartial, trig)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.tick()
	if trig.count() != 1 || trig.modes[0] != orchestrator.ModePartial {
		t.Fatalf("modes = %v", trig.modes)
	}

	trig.busy = true
	s.tick()
	if trig.count() != 1 {
		t.Errorf("busy tick should be skipped, modes = %v", trig.modes)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("0 3 * * *", orchestrator.ModeFull, &fakeTrigger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !s.Next().IsZero() {
		t.Error("Next() should be zero before Start")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	next := s.Next()
	if next.IsZero() || next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("Next() = %v, want 03:00", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("Next() = %v is not in the future", next)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if !s.Next().IsZero() {
		t.Error("Next() should be zero after Stop")
	}
}

func TestEveryFires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}

	trig := &fakeTrigger{}
	s, err := New("@every 1s", orchestrator.ModeFull, trig)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for trig.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("schedule did not fire")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
