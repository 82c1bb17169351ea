// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"github.com/tomtom215/listenimport/internal/models"
)

// Filter selects listens by time window and play duration.
// Nil bounds are not applied. The zero value keeps every listen.
type Filter struct {
	// Before rejects listens at or after this unix time.
	Before *int64

	// After rejects listens at or before this unix time.
	After *int64

	// MinPlayMs rejects listens with a reported duration below this value.
	MinPlayMs *uint32
}

// Keep reports whether l passes the filter.
// Both time bounds are exclusive.
func (f Filter) Keep(l models.Listen) bool {
	if f.Before != nil && l.ListenedAt >= *f.Before {
		return false
	}
	if f.After != nil && l.ListenedAt <= *f.After {
		return false
	}
	if f.MinPlayMs != nil && !l.PlayedAtLeast(*f.MinPlayMs) {
		return false
	}
	return true
}

// Apply returns the listens that pass the filter, in input order.
// The input slice is not modified.
func (f Filter) Apply(listens []models.Listen) []models.Listen {
	kept := make([]models.Listen, 0, len(listens))
	for _, l := range listens {
		if f.Keep(l) {
			kept = append(kept, l)
		}
	}
	return kept
}
