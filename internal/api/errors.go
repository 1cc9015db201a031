// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package api

// Error codes returned in APIError.Code
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidation       = "VALIDATION_ERROR"
	CodeWebhookFailed    = "WEBHOOK_FAILED"
	CodeInvalidMode      = "INVALID_MODE"
	CodeRunInProgress    = "RUN_IN_PROGRESS"
	CodeRateLimited      = "RATE_LIMITED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeNotFound         = "NOT_FOUND"
)

// maxWebhookBody bounds the webhook payload.
const maxWebhookBody = 64 << 10
