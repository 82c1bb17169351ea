// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

// Package config loads the importer configuration.
//
// Settings are layered with koanf, lowest to highest priority:
//
//  1. Built-in defaults
//  2. An optional YAML or TOML config file
//  3. A .env file, merged into the process environment
//  4. Environment variables
//  5. Command-line flags the user set explicitly
//
// Example config file (listenimport.yaml):
//
//	listenbrainz:
//	  url: https://api.listenbrainz.org
//	  requests_per_second: 2
//	import:
//	  batch_size: 500
//	  after: "2019-01-01"
//	  min_play_seconds: 30
//	loader:
//	  workers: 8
//	logging:
//	  level: debug
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/tomtom215/listenimport/internal/listenbrainz"
	"github.com/tomtom215/listenimport/internal/loader"
	"github.com/tomtom215/listenimport/internal/models"
)

// Config holds all importer settings.
type Config struct {
	ListenBrainz ListenBrainzConfig `koanf:"listenbrainz"`
	Import       ImportConfig       `koanf:"import"`
	Loader       LoaderConfig       `koanf:"loader"`
	Logging      LoggingConfig      `koanf:"logging"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

// ListenBrainzConfig holds the API connection settings.
type ListenBrainzConfig struct {
	// Token is the user token from https://listenbrainz.org/settings/.
	Token string `koanf:"token" validate:"lbtoken"`

	URL               string        `koanf:"url" validate:"required,http_url"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`

	// BreakerFailures opens the circuit after this many consecutive failed
	// requests. Zero, the default, disables the breaker.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gte=0"`
}

// BreakerEnabled reports whether requests go through a circuit breaker.
func (c ListenBrainzConfig) BreakerEnabled() bool {
	return c.BreakerFailures > 0
}

// Client returns the client settings.
func (c ListenBrainzConfig) Client(userAgent string) listenbrainz.Config {
	return listenbrainz.Config{
		URL:               c.URL,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		UserAgent:         userAgent,
	}
}

// Breaker returns the circuit breaker settings.
func (c ListenBrainzConfig) Breaker() listenbrainz.BreakerConfig {
	return listenbrainz.BreakerConfig{
		ConsecutiveFailures: c.BreakerFailures,
		OpenTimeout:         c.BreakerTimeout,
	}
}

// ImportConfig holds the pipeline settings.
type ImportConfig struct {
	// BatchSize is the number of listens per submission. The service accepts
	// at most 1000.
	BatchSize int `koanf:"batch_size" validate:"min=1,max=1000"`

	// Before and After bound listened_at exclusively. They accept RFC 3339 or
	// a local "YYYY-MM-DD[ HH[:MM[:SS]]]" date.
	Before string `koanf:"before"`
	After  string `koanf:"after"`

	Format         string `koanf:"format" validate:"oneof=auto spotify listenbrainz lb"`
	MinPlaySeconds int    `koanf:"min_play_seconds" validate:"gte=0,max=4294967"`
	DryRun         bool   `koanf:"dry_run"`

	// OfflineEpochGuard is the unix time a Spotify offline timestamp must
	// exceed to replace the nominal end time.
	OfflineEpochGuard int64 `koanf:"offline_epoch_guard" validate:"gte=0"`
}

// Window parses the before and after bounds. Unset bounds are nil.
func (c ImportConfig) Window() (before, after *time.Time, err error) {
	if c.Before != "" {
		t, err := ParseDateTime(c.Before, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("import.before: %w", err)
		}
		before = &t
	}
	if c.After != "" {
		t, err := ParseDateTime(c.After, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("import.after: %w", err)
		}
		after = &t
	}
	return before, after, nil
}

// MinPlay returns the minimum play time as a duration.
func (c ImportConfig) MinPlay() time.Duration {
	return time.Duration(c.MinPlaySeconds) * time.Second
}

// ParsedFormat returns the configured dump format.
func (c ImportConfig) ParsedFormat() (models.Format, error) {
	return models.ParseFormat(c.Format)
}

// LoaderConfig holds the file loading settings.
type LoaderConfig struct {
	Workers int `koanf:"workers" validate:"min=1,max=64"`

	// Patterns are matched against file names without extension.
	SpotifyPatterns      []string `koanf:"spotify_patterns" validate:"regexp"`
	ListenBrainzPatterns []string `koanf:"listenbrainz_patterns" validate:"regexp"`
}

// CompiledPatterns compiles the file-name patterns.
func (c LoaderConfig) CompiledPatterns() (loader.Patterns, error) {
	spotify, err := compileAll(c.SpotifyPatterns)
	if err != nil {
		return loader.Patterns{}, fmt.Errorf("loader.spotify_patterns: %w", err)
	}
	lb, err := compileAll(c.ListenBrainzPatterns)
	if err != nil {
		return loader.Patterns{}, fmt.Errorf("loader.listenbrainz_patterns: %w", err)
	}
	return loader.Patterns{Spotify: spotify, ListenBrainz: lb}, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig holds the metrics export settings.
type MetricsConfig struct {
	// File receives the run metrics in Prometheus text format. Empty disables
	// the export.
	File string `koanf:"file"`
}
