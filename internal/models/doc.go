// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

/*
Package models defines the uniform listen record shared by every stage of the
import pipeline.

Every dump format handled by internal/loader is normalized into a Listen. The
pipeline stages (filter, deduplicator, batcher, submitter) only ever see this
type, so adding a new source format means writing a loader that produces
Listens and nothing else.

Key Components:

  - Listen: one normalized play event (timestamp, track, artist, optional
    release, duration, track identifier and end reason)
  - EndReason: closed enumeration of Spotify playback end reasons with an
    IsInterruption classification used by deduplication
  - PayloadConverter: implemented by Listen and consumed by the submitter
    to build the submit-listens request body
  - Format: the dump format a listen was loaded from

Submission Client Stamp:

Every payload produced by Listen.ToPayload carries submission_client and
submission_client_version in its additional_info so that imported listens
can be traced back to this tool on the server side.
*/
package models
