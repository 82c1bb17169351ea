// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"slices"
	"time"

	"github.com/tomtom215/listenimport/internal/logging"
	"github.com/tomtom215/listenimport/internal/models"
)

// Deduplicator collapses listens that record the same real play.
// Input must be sorted ascending by ListenedAt; output keeps that order.
type Deduplicator interface {
	Dedup(listens []models.Listen) []models.Listen
}

// PassThrough is the Deduplicator for formats without duplicate rows.
type PassThrough struct{}

// Dedup returns listens unchanged.
func (PassThrough) Dedup(listens []models.Listen) []models.Listen {
	return listens
}

// SpotifyDeduplicator drops the extra rows Spotify logs when playback of a
// track is interrupted and resumed.
type SpotifyDeduplicator struct {
	// Window is the gap under which two plays of the same track are one listen.
	Window time.Duration
}

// Dedup walks from the latest listen to the earliest and compares each
// candidate with the last kept listen. A candidate for the same track is
// dropped when it lies within Window of the kept listen or ended in an
// interruption. The latest listen is always kept.
func (d SpotifyDeduplicator) Dedup(listens []models.Listen) []models.Listen {
	if len(listens) == 0 {
		return listens
	}

	window := int64(d.Window / time.Second)
	kept := make([]models.Listen, 0, len(listens))
	kept = append(kept, listens[len(listens)-1])

	for i := len(listens) - 2; i >= 0; i-- {
		c := listens[i]
		k := kept[len(kept)-1]

		if c.TrackKey() == k.TrackKey() && (absDiff(k.ListenedAt, c.ListenedAt) <= window || c.EndReason.IsInterruption()) {
			logging.Warn().
				Int64("listened_at", c.ListenedAt).
				Str("end_reason", c.EndReason.String()).
				Msgf("Ignoring duplicate listen for `%s` by `%s`", c.TrackName, c.ArtistName)
			continue
		}
		kept = append(kept, c)
	}

	slices.Reverse(kept)
	return kept
}

// DeduplicatorFor returns the Deduplicator for a source format.
func DeduplicatorFor(format models.Format, window time.Duration) Deduplicator {
	if format == models.FormatSpotify {
		return SpotifyDeduplicator{Window: window}
	}
	return PassThrough{}
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
