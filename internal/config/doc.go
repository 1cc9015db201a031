// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
Package config loads and validates Defaulterr configuration.

Configuration is layered with Koanf. Later layers override earlier ones:

 1. Built-in defaults (defaultConfig)
 2. YAML config file: the path given on the command line, else CONFIG_PATH,
    else the first of config.yaml, config.yml, /config/config.yaml,
    /config/config.yml that exists
 3. Environment variables for scalar settings

Groups, managed users and filters are nested structures and are read from the
file only.

# Config File

	plex_server_url: http://192.168.1.10:32400
	plex_owner_name: owner
	plex_owner_token: xxxxxxxx
	plex_client_identifier: defaulterr-1
	dry_run: false
	partial_run_on_start: true
	partial_run_cron_expression: "0 3 * * *"

	managed_users:
	  kid: yyyyyyyy

	groups:
	  everyone: [$ALL]
	  anime_fans: [owner, friend]

	filters:
	  Anime:
	    anime_fans:
	      audio:
	        - include: {language: Japanese}
	          on_match:
	            subtitles:
	              - include: {language: English}
	                exclude: {title: [signs, songs]}
	      subtitles: disabled

# Environment Variables

  - PLEX_SERVER_URL, PLEX_OWNER_NAME, PLEX_OWNER_TOKEN, PLEX_CLIENT_IDENTIFIER
  - DRY_RUN, FULL_RUN_ON_START, PARTIAL_RUN_ON_START, CLEAN_RUN_ON_START
  - FULL_RUN_CRON_EXPRESSION, PARTIAL_RUN_CRON_EXPRESSION (mutually exclusive)
  - UPDATE_BATCH_SIZE (default: 20), UPDATE_BATCH_DELAY (default: 1s)
  - UPDATE_RETRY_ATTEMPTS (default: 10), UPDATE_RETRY_DELAY (default: 30s)
  - PLEX_REQUEST_TIMEOUT (default: 30s), PLEX_REQUEST_INTERVAL (default: 50ms)
  - WATERMARK_PATH (default: watermarks.json)
  - HTTP_HOST (default: 0.0.0.0), PORT or HTTP_PORT (default: 3184)
  - RATE_LIMIT_REQUESTS (default: 60), RATE_LIMIT_WINDOW (default: 1m), DISABLE_RATE_LIMIT
  - LOG_LEVEL (default: info), LOG_FORMAT (default: console), LOG_CALLER, LOG_FILE

# Errors

Every error returned by Load or Validate wraps ErrInvalid:

	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrInvalid) {
	    // fatal: fix the configuration
	}
*/
package config
