// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"time"

	"github.com/tomtom215/listenimport/internal/listenbrainz"
)

// RunStats holds the counters of one import run.
type RunStats struct {
	// Files is the number of input files that were loaded.
	Files int

	// SkippedFiles is the number of input files that could not be loaded.
	SkippedFiles int

	// Loaded is the number of valid listens read from all files.
	Loaded int

	// Filtered is the number of listens rejected by the time window or
	// minimum play time.
	Filtered int

	// Duplicates is the number of listens dropped by deduplication.
	Duplicates int

	// Total is the number of listens handed to the submitter.
	Total int

	// Succeeded is the number of listens in accepted batches.
	Succeeded int

	// Failed is the number of listens in rejected batches.
	Failed int

	// Batches is the number of submission calls made.
	Batches int

	// FailedBatches is the number of rejected submission calls.
	FailedBatches int

	// RateLimitWaits is the number of server-directed pauses.
	RateLimitWaits int

	// RateLimit is the most recent snapshot reported by the server.
	RateLimit *listenbrainz.RateLimit

	// StartTime is when the run started.
	StartTime time.Time

	// EndTime is when the run completed (zero if still running).
	EndTime time.Time

	// DryRun indicates that nothing was submitted.
	DryRun bool
}

// Duration returns the duration of the run.
func (s *RunStats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// ListensPerSecond returns the submission rate.
func (s *RunStats) ListensPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.Total) / duration
}

// RunSummary is a JSON friendly summary of a run.
type RunSummary struct {
	Status           string    `json:"status"`
	Files            int       `json:"files"`
	SkippedFiles     int       `json:"skipped_files"`
	Loaded           int       `json:"loaded"`
	Filtered         int       `json:"filtered"`
	Duplicates       int       `json:"duplicates"`
	Total            int       `json:"total"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	Batches          int       `json:"batches"`
	FailedBatches    int       `json:"failed_batches"`
	RateLimitWaits   int       `json:"rate_limit_waits"`
	ListensPerSecond float64   `json:"listens_per_second"`
	ElapsedSeconds   float64   `json:"elapsed_seconds"`
	StartTime        time.Time `json:"start_time"`
	DryRun           bool      `json:"dry_run"`
}

// ToSummary converts RunStats to a RunSummary with calculated fields.
func (s *RunStats) ToSummary(running bool) *RunSummary {
	summary := &RunSummary{
		Files:            s.Files,
		SkippedFiles:     s.SkippedFiles,
		Loaded:           s.Loaded,
		Filtered:         s.Filtered,
		Duplicates:       s.Duplicates,
		Total:            s.Total,
		Succeeded:        s.Succeeded,
		Failed:           s.Failed,
		Batches:          s.Batches,
		FailedBatches:    s.FailedBatches,
		RateLimitWaits:   s.RateLimitWaits,
		ListensPerSecond: s.ListensPerSecond(),
		ElapsedSeconds:   s.Duration().Seconds(),
		StartTime:        s.StartTime,
		DryRun:           s.DryRun,
	}

	switch {
	case running:
		summary.Status = "running"
	case s.EndTime.IsZero():
		summary.Status = "pending"
	case s.FailedBatches > 0:
		summary.Status = "completed_with_failures"
	default:
		summary.Status = "completed"
	}

	return summary
}
