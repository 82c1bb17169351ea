// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"iter"

	"github.com/tomtom215/listenimport/internal/models"
)

// DefaultBatchSize is the number of listens per submission.
const DefaultBatchSize = 1000

// Batch is a contiguous, time ordered run of listens submitted together.
type Batch []models.Listen

// Earliest returns the ListenedAt of the first listen.
func (b Batch) Earliest() int64 {
	if len(b) == 0 {
		return 0
	}
	return b[0].ListenedAt
}

// Latest returns the ListenedAt of the last listen.
func (b Batch) Latest() int64 {
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1].ListenedAt
}

// Batches yields listens in consecutive chunks of size. Only the final chunk
// may be shorter, and an empty input yields nothing. A size below one uses
// DefaultBatchSize. Each batch has its own capacity so appending to it never
// writes into the next one.
func Batches(listens []models.Listen, size int) iter.Seq[Batch] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return func(yield func(Batch) bool) {
		for start := 0; start < len(listens); start += size {
			end := min(start+size, len(listens))
			if !yield(Batch(listens[start:end:end])) {
				return
			}
		}
	}
}
