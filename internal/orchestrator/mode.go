// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package orchestrator

import (
	"fmt"

	"github.com/tomtom215/defaulterr/internal/config"
)

// Mode selects how a run walks the libraries.
type Mode string

const (
	// ModeFull walks every item of every configured library.
	ModeFull Mode = "full"

	// ModePartial walks only items updated after the stored watermark.
	ModePartial Mode = "partial"

	// ModeClean walks everything like a full run but probes access and
	// writes the watermark like a partial run.
	ModeClean Mode = "clean"

	// ModeDry computes a full run without applying anything.
	ModeDry Mode = "dry"

	// ModeWebhook labels webhook-triggered work in metrics.
	ModeWebhook Mode = "webhook"
)

// ParseMode converts a user supplied mode name. ModeWebhook is not accepted.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFull, ModePartial, ModeClean, ModeDry:
		return m, nil
	default:
		return "", fmt.Errorf("unknown run mode %q (want full, partial, clean or dry)", s)
	}
}

// tracksWatermark reports whether the mode reads or writes watermarks and
// probes library access.
func (m Mode) tracksWatermark() bool {
	return m == ModePartial || m == ModeClean
}

// StartupModes returns the runs requested by the on-start flags, in order.
// dry_run replaces every other start run with a single dry run.
func StartupModes(cfg *config.Config) []Mode {
	if cfg.DryRun {
		return []Mode{ModeDry}
	}
	var modes []Mode
	if cfg.FullRunOnStart {
		modes = append(modes, ModeFull)
	}
	if cfg.PartialRunOnStart {
		modes = append(modes, ModePartial)
	}
	if cfg.CleanRunOnStart {
		modes = append(modes, ModeClean)
	}
	return modes
}
