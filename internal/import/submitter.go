// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/tomtom215/listenimport/internal/listenbrainz"
	"github.com/tomtom215/listenimport/internal/logging"
	"github.com/tomtom215/listenimport/internal/metrics"
)

// ListenSubmitter sends one batch of listens to the service.
type ListenSubmitter interface {
	SubmitListens(ctx context.Context, token string, req listenbrainz.SubmitListens) (*listenbrainz.SubmitResponse, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submitter submits batches one at a time and keeps the run counters.
// It is not safe for concurrent use; a run is strictly sequential.
type Submitter struct {
	client ListenSubmitter
	token  string
	sleep  Sleeper
	stats  RunStats

	// pending is an exhausted quota snapshot that the next Submit waits out.
	pending *listenbrainz.RateLimit
}

// NewSubmitter creates a Submitter. A nil sleep uses SleepContext.
func NewSubmitter(client ListenSubmitter, token string, sleep Sleeper) *Submitter {
	if sleep == nil {
		sleep = SleepContext
	}
	return &Submitter{
		client: client,
		token:  token,
		sleep:  sleep,
	}
}

// Stats returns a copy of the counters so far.
func (s *Submitter) Stats() RunStats {
	return s.stats
}

// Run submits every batch in order. A rejected batch is counted and logged
// and the run moves on. Run only stops early when ctx is done.
func (s *Submitter) Run(ctx context.Context, batches iter.Seq[Batch]) (RunStats, error) {
	for batch := range batches {
		if err := ctx.Err(); err != nil {
			return s.stats, err
		}
		if err := s.Submit(ctx, batch); err != nil {
			return s.stats, err
		}
	}

	logging.Info().
		Int("total", s.stats.Total).
		Int("succeeded", s.stats.Succeeded).
		Int("failed", s.stats.Failed).
		Int("batches", s.stats.Batches).
		Int("failed_batches", s.stats.FailedBatches).
		Msg("Submission finished")

	return s.stats, nil
}

// Submit sends one batch. When the previous response reported an exhausted
// quota, Submit first waits for the server-directed reset, so no pause
// follows the final batch. The returned error is non-nil only when ctx
// ended during a pause or the submission itself was canceled.
func (s *Submitter) Submit(ctx context.Context, batch Batch) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.waitForQuota(ctx); err != nil {
		return err
	}

	req := listenbrainz.SubmitListens{
		ListenType: listenbrainz.ListenTypeImport,
		Payload:    make([]listenbrainz.Payload, 0, len(batch)),
	}
	for _, l := range batch {
		req.Payload = append(req.Payload, l.ToPayload())
	}

	start := time.Now()
	resp, err := s.send(ctx, req)
	metrics.RecordBatch(len(batch), time.Since(start), err)

	s.stats.Batches++
	s.stats.Total += len(batch)

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			s.stats.Total -= len(batch)
			s.stats.Batches--
			return ctx.Err()
		}
		s.stats.Failed += len(batch)
		s.stats.FailedBatches++
		s.reportFailure(batch, err)

		var apiErr *listenbrainz.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
			s.recordQuota(apiErr.RateLimit)
		}
		return nil
	}

	s.stats.Succeeded += len(batch)
	logging.Info().Msgf("Imported %d listens | Succeeded: %d, Failed: %d, Total: %d",
		len(batch), s.stats.Succeeded, s.stats.Failed, s.stats.Total)

	if resp != nil {
		s.recordQuota(resp.RateLimit)
	}
	return nil
}

// send submits req, waiting out an open circuit and resending the same
// request once the breaker allows a trial call.
func (s *Submitter) send(ctx context.Context, req listenbrainz.SubmitListens) (*listenbrainz.SubmitResponse, error) {
	resp, err := s.client.SubmitListens(ctx, s.token, req)

	var open *listenbrainz.CircuitOpenError
	for errors.As(err, &open) {
		logging.Warn().Dur("retry_in", open.RetryIn).Msg("Circuit breaker open; resubmitting batch after it resets")
		if serr := s.sleep(ctx, open.RetryIn); serr != nil {
			return nil, serr
		}
		resp, err = s.client.SubmitListens(ctx, s.token, req)
	}
	return resp, err
}

// recordQuota keeps the latest snapshot and marks an exhausted quota for
// the next submission to wait out.
func (s *Submitter) recordQuota(limit *listenbrainz.RateLimit) {
	if limit == nil {
		return
	}
	snapshot := *limit
	s.stats.RateLimit = &snapshot
	if snapshot.Exhausted() {
		s.pending = &snapshot
	}
}

// waitForQuota pauses until the pending quota resets.
func (s *Submitter) waitForQuota(ctx context.Context) error {
	if s.pending == nil {
		return nil
	}
	snapshot := *s.pending
	s.pending = nil

	wait := snapshot.ResetDuration()
	logging.Warn().Msgf("API rate limit reached; Will continue in %d seconds...", snapshot.ResetIn)
	s.stats.RateLimitWaits++
	metrics.RecordRateLimitWait(wait)

	return s.sleep(ctx, wait)
}

// reportFailure logs the error and the filter bounds that select the batch.
func (s *Submitter) reportFailure(batch Batch, err error) {
	after, before := s.RerunHint(batch)
	logging.Error().
		Err(err).
		Int("listens", len(batch)).
		Int64("earliest", after).
		Int64("latest", before).
		Msg("Failed to submit batch")
	logging.Error().Msgf("> Rerun batch using: --after %s --before %s", formatHintTime(after), formatHintTime(before))
}

// RerunHint returns the --after and --before values that bound the batch:
// its earliest and latest ListenedAt.
func (s *Submitter) RerunHint(batch Batch) (after, before int64) {
	return batch.Earliest(), batch.Latest()
}

func formatHintTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
