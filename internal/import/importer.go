// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/listenimport/internal/listenbrainz"
	"github.com/tomtom215/listenimport/internal/loader"
	"github.com/tomtom215/listenimport/internal/logging"
	"github.com/tomtom215/listenimport/internal/metrics"
	"github.com/tomtom215/listenimport/internal/models"
)

var (
	// ErrInvalidToken is returned when the service rejects the user token.
	ErrInvalidToken = errors.New("invalid user token")

	// ErrImportRunning is returned when Import is called during another run.
	ErrImportRunning = errors.New("import already in progress")
)

// Loader reads dump files into listens.
type Loader interface {
	LoadAll(ctx context.Context, paths []string, format models.Format) ([]loader.FileResult, error)
}

// Client is the part of the ListenBrainz API the importer uses.
type Client interface {
	ListenSubmitter
	ValidateToken(ctx context.Context, token string) (*listenbrainz.TokenValidation, error)
}

// Config configures an import run.
type Config struct {
	// Token is the ListenBrainz user token.
	Token string

	// Format selects the dump format, or FormatAuto to detect it per file.
	Format models.Format

	// BatchSize is the number of listens per submission. Default: 1000
	BatchSize int

	// Before and After bound listened_at exclusively. Nil means unbounded.
	Before *time.Time
	After  *time.Time

	// MinPlay drops listens played for less than this, and is also the
	// window under which repeated Spotify rows are one listen.
	MinPlay time.Duration

	// DryRun loads, filters and batches without validating the token or
	// submitting anything.
	DryRun bool
}

// Filter returns the listen filter for the configured bounds.
func (c Config) Filter() Filter {
	var f Filter
	if c.Before != nil {
		v := c.Before.Unix()
		f.Before = &v
	}
	if c.After != nil {
		v := c.After.Unix()
		f.After = &v
	}
	if c.MinPlay > 0 {
		ms := min(c.MinPlay.Milliseconds(), math.MaxUint32)
		f.MinPlayMs = models.Uint32(uint32(ms))
	}
	return f
}

// Option customizes an Importer.
type Option func(*Importer)

// WithSleeper replaces the rate limit sleeper.
func WithSleeper(s Sleeper) Option {
	return func(i *Importer) {
		i.sleep = s
	}
}

// WithTokenBackOff replaces the retry policy of the token check.
func WithTokenBackOff(newBackOff func() backoff.BackOff) Option {
	return func(i *Importer) {
		i.newBackOff = newBackOff
	}
}

// Importer runs the listen import pipeline.
type Importer struct {
	cfg        Config
	loader     Loader
	client     Client
	sleep      Sleeper
	newBackOff func() backoff.BackOff

	// State
	mu      sync.RWMutex
	running bool
	stats   *RunStats
}

// NewImporter creates an Importer. client may be nil for dry runs.
func NewImporter(cfg Config, ldr Loader, client Client, opts ...Option) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Format == "" {
		cfg.Format = models.FormatAuto
	}

	i := &Importer{
		cfg:        cfg,
		loader:     ldr,
		client:     client,
		sleep:      SleepContext,
		newBackOff: defaultTokenBackOff,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func defaultTokenBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 4)
}

// Import validates the token, loads files, and submits their listens.
// Only a rejected token, a failed token check, or ctx ending return an
// error; skipped files and failed batches are reported in the stats.
func (i *Importer) Import(ctx context.Context, files []string) (*RunStats, error) {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil, ErrImportRunning
	}
	i.running = true
	i.stats = &RunStats{
		StartTime: time.Now(),
		DryRun:    i.cfg.DryRun,
	}
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.running = false
		i.stats.EndTime = time.Now()
		stats := *i.stats
		i.mu.Unlock()
		metrics.RecordRun(stats.EndTime, stats.Duration())
	}()

	client := i.client
	if i.cfg.DryRun {
		logging.Info().Msg("Dry run: token check and submission are skipped")
		client = discardClient{}
	} else {
		if client == nil {
			return i.GetStats(), errors.New("no ListenBrainz client configured")
		}
		if err := i.validateToken(ctx, client); err != nil {
			return i.GetStats(), err
		}
	}

	results, err := i.loader.LoadAll(ctx, files, i.cfg.Format)
	if err != nil {
		return i.GetStats(), fmt.Errorf("load files: %w", err)
	}

	listens := i.prepare(results)

	logging.Info().
		Int("listens", len(listens)).
		Int("batch_size", i.cfg.BatchSize).
		Msg("Starting submission")

	submitter := NewSubmitter(client, i.cfg.Token, i.sleep)
	runStats, runErr := submitter.Run(ctx, Batches(listens, i.cfg.BatchSize))

	i.mu.Lock()
	i.stats.Total = runStats.Total
	i.stats.Succeeded = runStats.Succeeded
	i.stats.Failed = runStats.Failed
	i.stats.Batches = runStats.Batches
	i.stats.FailedBatches = runStats.FailedBatches
	i.stats.RateLimitWaits = runStats.RateLimitWaits
	i.stats.RateLimit = runStats.RateLimit
	i.mu.Unlock()

	if runErr != nil {
		return i.GetStats(), runErr
	}

	stats := i.GetStats()
	logging.Info().
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped_files", stats.SkippedFiles).
		Int("duplicates", stats.Duplicates).
		Dur("duration", stats.Duration()).
		Msg("Import completed")

	return stats, nil
}

// validateToken checks the token once, retrying transient failures.
func (i *Importer) validateToken(ctx context.Context, client Client) error {
	var userName string

	op := func() error {
		result, err := client.ValidateToken(ctx, i.cfg.Token)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			var apiErr *listenbrainz.APIError
			if errors.As(err, &apiErr) {
				if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
					return backoff.Permanent(fmt.Errorf("%w: %w", ErrInvalidToken, err))
				}
				if !apiErr.Temporary() {
					return backoff.Permanent(err)
				}
			}
			return err
		}
		if !result.Valid {
			return backoff.Permanent(ErrInvalidToken)
		}
		userName = result.UserName
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logging.Warn().Err(err).Dur("retry_in", wait).Msg("Token check failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(i.newBackOff(), ctx), notify); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return err
		}
		return fmt.Errorf("validate token: %w", err)
	}

	logging.Info().Str("user", userName).Msg("Token validated")
	return nil
}

// prepare filters, sorts and deduplicates each format group, then merges the
// groups into one ascending sequence.
func (i *Importer) prepare(results []loader.FileResult) []models.Listen {
	groups := make(map[models.Format][]models.Listen)
	var files, skipped, loaded int

	for _, res := range results {
		if res.Err != nil {
			skipped++
			continue
		}
		files++
		loaded += len(res.Listens)
		groups[res.Format] = append(groups[res.Format], res.Listens...)
	}

	filter := i.cfg.Filter()
	var merged []models.Listen
	var filtered, duplicates int

	formats := make([]models.Format, 0, len(groups))
	for f := range groups {
		formats = append(formats, f)
	}
	slices.Sort(formats)

	for _, format := range formats {
		group := groups[format]
		kept := filter.Apply(group)
		filtered += len(group) - len(kept)

		sortByTime(kept)
		deduped := DeduplicatorFor(format, i.cfg.MinPlay).Dedup(kept)
		duplicates += len(kept) - len(deduped)

		merged = append(merged, deduped...)
	}
	sortByTime(merged)

	metrics.RecordDropped(metrics.DropFiltered, filtered)
	metrics.RecordDropped(metrics.DropDuplicate, duplicates)

	i.mu.Lock()
	i.stats.Files = files
	i.stats.SkippedFiles = skipped
	i.stats.Loaded = loaded
	i.stats.Filtered = filtered
	i.stats.Duplicates = duplicates
	i.mu.Unlock()

	return merged
}

func sortByTime(listens []models.Listen) {
	slices.SortStableFunc(listens, func(a, b models.Listen) int {
		return cmp.Compare(a.ListenedAt, b.ListenedAt)
	})
}

// GetStats returns the current run statistics.
func (i *Importer) GetStats() *RunStats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.stats == nil {
		return &RunStats{}
	}

	// Return a copy
	stats := *i.stats
	return &stats
}

// IsRunning returns whether an import is currently in progress.
func (i *Importer) IsRunning() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.running
}

// discardClient accepts every batch without sending it.
type discardClient struct{}

func (discardClient) SubmitListens(_ context.Context, _ string, req listenbrainz.SubmitListens) (*listenbrainz.SubmitResponse, error) {
	logging.Debug().Int("listens", len(req.Payload)).Msg("Dry run: batch not submitted")
	return &listenbrainz.SubmitResponse{Status: "ok"}, nil
}

func (discardClient) ValidateToken(context.Context, string) (*listenbrainz.TokenValidation, error) {
	return &listenbrainz.TokenValidation{Valid: true}, nil
}
