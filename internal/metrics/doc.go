// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:3184/metrics

# Available Metrics

Runs:
  - defaulterr_runs_total{mode,result}
  - defaulterr_run_duration_seconds{mode}
  - defaulterr_run_active
  - defaulterr_parts_evaluated_total{library,outcome}

Updates:
  - defaulterr_updates_total{result}
  - defaulterr_update_retries_total
  - defaulterr_update_duration_seconds

Plex reads:
  - defaulterr_fetch_errors_total{kind}
  - defaulterr_circuit_breaker_state{name}
  - defaulterr_circuit_breaker_requests_total{name,result}
  - defaulterr_circuit_breaker_state_transitions_total{name,from_state,to_state}

State:
  - defaulterr_watermark{library}
  - defaulterr_webhooks_total{outcome}

HTTP:
  - defaulterr_api_requests_total{method,endpoint,status}
  - defaulterr_api_request_duration_seconds{method,endpoint}
*/
package metrics
