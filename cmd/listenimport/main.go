// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

// Package main is the entry point for the listenimport command.
//
// listenimport reads Spotify streaming history exports and ListenBrainz listen
// exports and submits them to ListenBrainz in batches.
//
// # Pipeline
//
//  1. Configuration: defaults, config file, .env, environment, flags (Koanf v2)
//  2. Token check against /1/validate-token (skipped for --dry-run)
//  3. Load all files in parallel, skipping unrecognized or unreadable ones
//  4. Filter by time window and play time, sort, and drop Spotify duplicates
//  5. Submit batches one at a time, pausing when the rate limit is exhausted
//
// # Configuration
//
// Every flag has a config file key and most have an environment variable:
//   - LISTENBRAINZ_TOKEN: user token from https://listenbrainz.org/settings/
//   - LISTENBRAINZ_URL: API root (default https://api.listenbrainz.org)
//   - IMPORT_BATCH_SIZE, IMPORT_BEFORE, IMPORT_AFTER, IMPORT_MIN_PLAY_SECONDS
//   - LOG_LEVEL, LOG_FORMAT, METRICS_FILE
//
// # Exit Codes
//
//	0  run finished, even with failed batches or skipped files
//	1  token rejected, token check failed, or interrupted
//	2  invalid configuration or arguments
//
// # Example Usage
//
//	export LISTENBRAINZ_TOKEN=6a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d
//	listenimport --after 2019-01-01 endsong_*.json
//
//	listenimport --dry-run --listenbrainz --log-level debug export.json
//
// Failed batches log the flags to rerun just that batch:
//
//	> Rerun batch using: --after 2019-03-01T10:00:00Z --before 2019-03-04T18:12:09Z
package main

import (
	"os"

	"github.com/tomtom215/listenimport/internal/logging"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		logging.Error().Err(err).Msg("listenimport failed")
		os.Exit(exitCode(err))
	}
}
