// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/listenimport/internal/config"
	listenimport "github.com/tomtom215/listenimport/internal/import"
	"github.com/tomtom215/listenimport/internal/listenbrainz"
	"github.com/tomtom215/listenimport/internal/loader"
	"github.com/tomtom215/listenimport/internal/logging"
	"github.com/tomtom215/listenimport/internal/metrics"
	"github.com/tomtom215/listenimport/internal/models"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// runError marks failures of the import itself, as opposed to bad
// configuration or arguments.
type runError struct {
	err error
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

// exitCode maps an error from the root command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var re *runError
	if errors.As(err, &re) {
		return exitFailure
	}
	return exitUsage
}

// flagKeys maps flag names to the koanf path they override.
var flagKeys = map[string]string{
	"token":         "listenbrainz.token",
	"url":           "listenbrainz.url",
	"before":        "import.before",
	"after":         "import.after",
	"batch-size":    "import.batch_size",
	"min-play-time": "import.min_play_seconds",
	"dry-run":       "import.dry_run",
	"workers":       "loader.workers",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"metrics-file":  "metrics.file",
}

type rootOptions struct {
	configPath   string
	envFile      string
	token        string
	url          string
	before       string
	after        string
	batchSize    int
	spotify      bool
	listenbrainz bool
	minPlayTime  int
	dryRun       bool
	workers      int
	logLevel     string
	logFormat    string
	metricsFile  string
	jsonSummary  bool
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

// newRootCmdWith binds the flags to opts.
func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listenimport [flags] FILE...",
		Short: "Import Spotify and ListenBrainz listening history into ListenBrainz",
		Long: `listenimport submits listens from Spotify streaming history exports
(endsong_*.json, StreamingHistory*.json, Streaming_History_Audio_*.json) and
ListenBrainz exports (<user>_lb-YYYY-MM-DD.json) to ListenBrainz.

Files are recognized by name unless --spotify or --listenbrainz is given.
Listens outside --after/--before or played for less than --min-play-time
seconds are skipped.`,
		Version:       models.SubmissionClientVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one FILE is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (.yaml, .yml or .toml)")
	f.StringVar(&opts.envFile, "env-file", "", "env file to load (default .env if present)")
	f.StringVarP(&opts.token, "token", "t", "", "ListenBrainz user token (env LISTENBRAINZ_TOKEN)")
	f.StringVar(&opts.url, "url", listenbrainz.DefaultURL, "ListenBrainz API root")
	f.StringVarP(&opts.before, "before", "b", "", "only import listens before this date (RFC 3339 or YYYY-MM-DD[ HH[:MM[:SS]]])")
	f.StringVarP(&opts.after, "after", "a", "", "only import listens after this date")
	f.IntVar(&opts.batchSize, "batch-size", listenimport.DefaultBatchSize, "listens per submission (max 1000)")
	f.BoolVar(&opts.spotify, "spotify", false, "treat every file as a Spotify export")
	f.BoolVar(&opts.listenbrainz, "listenbrainz", false, "treat every file as a ListenBrainz export")
	f.IntVar(&opts.minPlayTime, "min-play-time", 30, "minimum play time in seconds")
	f.BoolVar(&opts.dryRun, "dry-run", false, "load and filter without submitting")
	f.IntVar(&opts.workers, "workers", 4, "files decoded in parallel")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	f.BoolVar(&opts.jsonSummary, "json", false, "print the run summary as JSON on stdout")

	cmd.MarkFlagsMutuallyExclusive("spotify", "listenbrainz")

	return cmd
}

// explicitFlags returns the koanf overrides for flags the user set.
func explicitFlags(cmd *cobra.Command, opts *rootOptions) map[string]any {
	values := map[string]any{
		"token":         opts.token,
		"url":           opts.url,
		"before":        opts.before,
		"after":         opts.after,
		"batch-size":    opts.batchSize,
		"min-play-time": opts.minPlayTime,
		"dry-run":       opts.dryRun,
		"workers":       opts.workers,
		"log-level":     opts.logLevel,
		"log-format":    opts.logFormat,
		"metrics-file":  opts.metricsFile,
	}

	out := make(map[string]any)
	for name, key := range flagKeys {
		if cmd.Flags().Changed(name) {
			out[key] = values[name]
		}
	}

	switch {
	case opts.spotify:
		out["import.format"] = string(models.FormatSpotify)
	case opts.listenbrainz:
		out["import.format"] = string(models.FormatListenBrainz)
	}
	return out
}

func runImport(cmd *cobra.Command, opts *rootOptions, files []string) error {
	cfg, err := config.Load(config.Options{
		ConfigPath: opts.configPath,
		EnvFile:    opts.envFile,
		Flags:      explicitFlags(cmd, opts),
	})
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	importCfg, ldr, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	var client listenimport.Client
	if !cfg.Import.DryRun {
		client = buildClient(cfg.ListenBrainz)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	imp := listenimport.NewImporter(importCfg, ldr, client)
	stats, err := imp.Import(ctx, files)

	if cfg.Metrics.File != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.File); werr != nil {
			logging.Warn().Err(werr).Str("path", cfg.Metrics.File).Msg("Failed to write metrics file")
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &runError{err: fmt.Errorf("interrupted: %w", err)}
		}
		return &runError{err: err}
	}

	if opts.jsonSummary {
		return writeSummary(cmd.OutOrStdout(), stats)
	}
	return nil
}

// buildPipeline resolves the importer and loader settings.
func buildPipeline(cfg *config.Config) (listenimport.Config, *loader.Loader, error) {
	before, after, err := cfg.Import.Window()
	if err != nil {
		return listenimport.Config{}, nil, err
	}
	format, err := cfg.Import.ParsedFormat()
	if err != nil {
		return listenimport.Config{}, nil, err
	}
	patterns, err := cfg.Loader.CompiledPatterns()
	if err != nil {
		return listenimport.Config{}, nil, err
	}

	ldr := loader.New(loader.Config{
		Patterns:   patterns,
		Workers:    cfg.Loader.Workers,
		EpochGuard: cfg.Import.OfflineEpochGuard,
	})

	return listenimport.Config{
		Token:     cfg.ListenBrainz.Token,
		Format:    format,
		BatchSize: cfg.Import.BatchSize,
		Before:    before,
		After:     after,
		MinPlay:   cfg.Import.MinPlay(),
		DryRun:    cfg.Import.DryRun,
	}, ldr, nil
}

// buildClient creates the API client, behind a circuit breaker when one is configured.
func buildClient(cfg config.ListenBrainzConfig) listenimport.Client {
	userAgent := models.SubmissionClient + "/" + models.SubmissionClientVersion
	client := listenbrainz.NewClient(cfg.Client(userAgent))
	if !cfg.BreakerEnabled() {
		return client
	}
	return listenbrainz.NewBreakerClient(client, cfg.Breaker())
}

func writeSummary(w io.Writer, stats *listenimport.RunStats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats.ToSummary(false)); err != nil {
		return &runError{err: fmt.Errorf("write summary: %w", err)}
	}
	return nil
}
