// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

// Package loader reads listen history dumps from disk and normalizes every
// entry into a models.Listen.
//
// Two dump families are understood: Spotify streaming history exports (both
// the simple StreamingHistory*.json and the extended endsong_*.json /
// Streaming_History_Audio_*.json shapes) and ListenBrainz listen exports.
// A single malformed entry is skipped without discarding the rest of the
// file; a file that cannot be read or is not a JSON array is skipped as a
// whole.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/listenimport/internal/logging"
	"github.com/tomtom215/listenimport/internal/metrics"
	"github.com/tomtom215/listenimport/internal/models"
)

// ErrUnrecognizedFile is returned when auto-detection finds no format for a
// file name.
var ErrUnrecognizedFile = errors.New("unrecognized file name")

// Patterns holds the compiled file-name patterns used for auto-detection.
// They are matched against the file name without its extension.
type Patterns struct {
	Spotify      []*regexp.Regexp
	ListenBrainz []*regexp.Regexp
}

// Detect returns the format whose pattern matches stem.
func (p Patterns) Detect(stem string) (models.Format, bool) {
	for _, re := range p.Spotify {
		if re.MatchString(stem) {
			return models.FormatSpotify, true
		}
	}
	for _, re := range p.ListenBrainz {
		if re.MatchString(stem) {
			return models.FormatListenBrainz, true
		}
	}
	return "", false
}

// Config configures a Loader.
type Config struct {
	Patterns Patterns

	// Workers bounds how many files are decoded at once. Default: 4
	Workers int

	// EpochGuard is the unix time (seconds) a Spotify offline timestamp must
	// exceed to be used instead of the nominal end time.
	EpochGuard int64
}

// Loader turns dump files into listens. Safe for concurrent use.
type Loader struct {
	cfg Config
}

// New creates a Loader.
func New(cfg Config) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Loader{cfg: cfg}
}

// FileResult is the outcome of loading one file.
type FileResult struct {
	Path   string
	Format models.Format

	// Listens are the valid listens of the file in file order.
	Listens []models.Listen

	// Malformed counts entries that could not be decoded.
	Malformed int

	// Invalid counts entries without a track or artist name.
	Invalid int

	// Err is set when the whole file was skipped.
	Err error
}

// decodeFunc converts one raw dump entry into a listen.
type decodeFunc func(raw json.RawMessage, epochGuard int64) (models.Listen, error)

// Load reads and decodes a single file. With FormatAuto the format is taken
// from the file name; with an explicit format the file is decoded as that
// format whatever its name.
func (l *Loader) Load(path string, format models.Format) (*FileResult, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	detected, ok := l.cfg.Patterns.Detect(stem)

	switch {
	case format == models.FormatAuto || format == "":
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrUnrecognizedFile)
		}
		format = detected
	case !ok || detected != format:
		logging.Debug().Str("file", path).Str("format", string(format)).Msg("File name does not match format, decoding anyway")
	}

	var decode decodeFunc
	switch format {
	case models.FormatSpotify:
		decode = decodeSpotify
	case models.FormatListenBrainz:
		decode = decodeListenBrainz
	default:
		return nil, fmt.Errorf("%s: unsupported format %q", path, format)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	result := &FileResult{
		Path:    path,
		Format:  format,
		Listens: make([]models.Listen, 0, len(entries)),
	}
	for idx, raw := range entries {
		listen, err := decode(raw, l.cfg.EpochGuard)
		if err != nil {
			result.Malformed++
			logging.Debug().Err(err).Str("file", path).Int("index", idx).Msg("Skipping malformed entry")
			continue
		}
		if !listen.Valid() {
			result.Invalid++
			continue
		}
		listen.Source = format
		result.Listens = append(result.Listens, listen)
	}

	return result, nil
}

// LoadAll loads every path with at most Workers files in flight. Results are
// returned in argument order. A file that fails to load is logged and its
// result carries Err; the other files are unaffected. The returned error is
// only set when ctx ends.
func (l *Loader) LoadAll(ctx context.Context, paths []string, format models.Format) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.loadLogged(path, format)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// loadLogged wraps Load with the per-file log lines and metrics.
func (l *Loader) loadLogged(path string, format models.Format) FileResult {
	res, err := l.Load(path, format)
	if err != nil {
		logging.Error().Err(err).Str("file", path).Msg("Skipping file")
		metrics.RecordFile(false)
		return FileResult{Path: path, Format: format, Err: err}
	}

	metrics.RecordFile(true)
	metrics.RecordLoaded(string(res.Format), len(res.Listens))
	metrics.RecordDropped(metrics.DropMalformed, res.Malformed)
	metrics.RecordDropped(metrics.DropInvalid, res.Invalid)

	event := logging.Info().
		Str("file", path).
		Str("format", string(res.Format)).
		Int("listens", len(res.Listens))
	if res.Malformed > 0 {
		event = event.Int("malformed", res.Malformed)
	}
	if res.Invalid > 0 {
		event = event.Int("invalid", res.Invalid)
	}
	event.Msg("Loaded file")

	return *res
}
