// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

// Package listenimport is the listen import pipeline.
//
// It takes normalized listens from the loader, filters them by time window
// and play duration, collapses near-duplicate plays, and submits them to
// ListenBrainz in ordered, fixed-size batches.
//
// # Pipeline
//
//	dump files
//	     ↓
//	Loader (internal/loader, parallel per file)
//	     ↓
//	Filter (time window, minimum play time)
//	     ↓
//	Deduplicator (per source format)
//	     ↓
//	Batches (ascending listened_at)
//	     ↓
//	Submitter (sequential, server-directed rate limit pauses)
//	     ↓
//	ListenBrainz API (internal/listenbrainz)
//
// # Failure Handling
//
// The token check is the only fatal error and happens before any file is
// read. Unreadable files are skipped by the loader. A rejected batch is
// counted as failed and logged with the --after/--before bounds that select
// exactly that batch on a rerun; the run then continues with the next batch.
//
// # Example Usage
//
//	imp := listenimport.NewImporter(listenimport.Config{
//	    Token:     token,
//	    BatchSize: 1000,
//	    MinPlay:   30 * time.Second,
//	}, loader.New(loaderCfg), client)
//
//	stats, err := imp.Import(ctx, files, models.FormatAuto)
//	if errors.Is(err, listenimport.ErrInvalidToken) {
//	    os.Exit(1)
//	}
//	fmt.Printf("Imported %d of %d listens\n", stats.Succeeded, stats.Total)
package listenimport
