// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("partial", "success"))
	RecordRun("partial", "success", 2*time.Second)
	after := testutil.ToFloat64(RunsTotal.WithLabelValues("partial", "success"))
	if after != before+1 {
		t.Errorf("runs_total = %v, want %v", after, before+1)
	}
}

func TestRecordUpdate(t *testing.T) {
	tests := []string{"success", "failure", "forbidden", "skipped"}
	for _, result := range tests {
		t.Run(result, func(t *testing.T) {
			before := testutil.ToFloat64(UpdatesTotal.WithLabelValues(result))
			RecordUpdate(result, 10*time.Millisecond)
			if got := testutil.ToFloat64(UpdatesTotal.WithLabelValues(result)); got != before+1 {
				t.Errorf("updates_total{%s} = %v, want %v", result, got, before+1)
			}
		})
	}
}

func TestRecordFetchError(t *testing.T) {
	before := testutil.ToFloat64(FetchErrors.WithLabelValues("metadata"))
	RecordFetchError("metadata")
	RecordFetchError("metadata")
	if got := testutil.ToFloat64(FetchErrors.WithLabelValues("metadata")); got != before+2 {
		t.Errorf("fetch_errors_total = %v, want %v", got, before+2)
	}
}

func TestSetWatermark(t *testing.T) {
	SetWatermark("Anime", 250)
	if got := testutil.ToFloat64(Watermark.WithLabelValues("Anime")); got != 250 {
		t.Errorf("watermark = %v, want 250", got)
	}
}

func TestTrackRunActive(t *testing.T) {
	TrackRunActive(true)
	if got := testutil.ToFloat64(RunActive); got != 1 {
		t.Errorf("run_active = %v, want 1", got)
	}
	TrackRunActive(false)
	if got := testutil.ToFloat64(RunActive); got != 0 {
		t.Errorf("run_active = %v, want 0", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/webhook", "200"))
	RecordAPIRequest("POST", "/webhook", "200", 5*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/webhook", "200")); got != before+1 {
		t.Errorf("api_requests_total = %v, want %v", got, before+1)
	}
}
