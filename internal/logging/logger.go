// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

// Package logging provides centralized zerolog-based logging for listenimport.
//
// All diagnostics (skipped files, dropped duplicates, batch progress, rerun
// hints and rate-limit notices) go through the global logger configured here.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	})
//
//	logging.Info().Str("file", path).Int("listens", n).Msg("Loaded file")
//	logging.Warn().Msgf("Ignoring duplicate listen for `%s` by `%s`", track, artist)
//
// # Configuration
//
// Environment Variables (resolved by internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: console, json (default: console)
//   - LOG_CALLER: true/false - include caller info (default: false)
//
// Durations are written in seconds, so a token check retry reads as
// "retry_in":1.5 in JSON output.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn or error.
	// Default: info
	Level string

	// Format is console (human readable, the default) or json.
	Format string

	Caller    bool
	Timestamp bool

	// Output defaults to os.Stderr so stdout stays free for --json.
	Output io.Writer
}

// DefaultConfig returns the configuration used until Init is called.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "console",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // logging must work before Init is called
func init() {
	configure(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	configure(cfg)
}

// configure must be called with mu held.
func configure(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	// Waits and retry delays are logged as fractional seconds.
	zerolog.DurationFieldUnit = time.Second
	zerolog.DurationFieldInteger = false

	var out io.Writer = cfg.Output
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(cfg.Output),
		}
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log = ctx.Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// parseLevel maps a level name to a zerolog level. Unknown names and the
// empty string select info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Debug starts a new message with debug level.
func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

// Info starts a new message with info level.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a new message with warning level.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts a new message with error level.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// NewTestLogger creates a logger that writes JSON lines to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// CaptureForTest routes every level to w as JSON lines and returns a
// function restoring the previous logger and level.
//
//	var buf bytes.Buffer
//	defer logging.CaptureForTest(&buf)()
func CaptureForTest(w io.Writer) (restore func()) {
	mu.Lock()
	prev := log
	prevLevel := zerolog.GlobalLevel()
	log = NewTestLogger(w)
	mu.Unlock()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	return func() {
		mu.Lock()
		log = prev
		mu.Unlock()
		zerolog.SetGlobalLevel(prevLevel)
	}
}
