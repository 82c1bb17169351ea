// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/listenimport/internal/listenbrainz"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"listenimport.yaml",
	"listenimport.yml",
	"listenimport.toml",
	"/etc/listenimport/config.yaml",
	"/etc/listenimport/config.toml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultEnvFile is read into the environment when present.
const DefaultEnvFile = ".env"

// Default file-name patterns for format detection.
var (
	DefaultSpotifyPatterns = []string{
		`^(endsong_|StreamingHistory)\d+\b`,
		`^Streaming_History_Audio_`,
	}
	DefaultListenBrainzPatterns = []string{
		`^\w+_lb-\d{4}-\d{2}-\d{2}\b`,
	}
)

// Options controls where Load reads settings from.
type Options struct {
	// ConfigPath is an explicit config file. It must exist when set.
	ConfigPath string

	// EnvFile is an explicit .env file. It must exist when set; otherwise
	// DefaultEnvFile is read if it exists.
	EnvFile string

	// Flags are explicit overrides keyed by koanf path, e.g.
	// "import.batch_size". They take precedence over every other layer.
	Flags map[string]any
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by the other layers.
func defaultConfig() *Config {
	return &Config{
		ListenBrainz: ListenBrainzConfig{
			URL:             listenbrainz.DefaultURL,
			Timeout:         60 * time.Second,
			BreakerFailures: 0,
			BreakerTimeout:  time.Minute,
		},
		Import: ImportConfig{
			BatchSize:      1000,
			Format:         "auto",
			MinPlaySeconds: 30,
		},
		Loader: LoaderConfig{
			Workers:              4,
			SpotifyPatterns:      DefaultSpotifyPatterns,
			ListenBrainzPatterns: DefaultListenBrainzPatterns,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from all layers and validates it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath, err := resolveConfigFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		parser, err := parserFor(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: .env into the process environment. Variables already set win.
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	// Layer 4: environment variables
	// LISTENBRAINZ_TOKEN -> listenbrainz.token
	// IMPORT_BATCH_SIZE -> import.batch_size
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Layer 5: explicit flags
	for path, value := range opts.Flags {
		if err := k.Set(path, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// resolveConfigFile returns the config file to read, or "" for none.
// An explicit path must exist; the environment and default paths are optional.
func resolveConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	return findConfigFile(), nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// parserFor picks the koanf parser by file extension.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config file %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
}

func loadEnvFile(explicit string) error {
	if explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", explicit, err)
		}
		return nil
	}

	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", DefaultEnvFile, err)
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"listenbrainz_token":               "listenbrainz.token",
	"listenbrainz_url":                 "listenbrainz.url",
	"listenbrainz_timeout":             "listenbrainz.timeout",
	"listenbrainz_requests_per_second": "listenbrainz.requests_per_second",
	"listenbrainz_breaker_failures":    "listenbrainz.breaker_failures",
	"listenbrainz_breaker_timeout":     "listenbrainz.breaker_timeout",

	"import_batch_size":          "import.batch_size",
	"import_before":              "import.before",
	"import_after":               "import.after",
	"import_format":              "import.format",
	"import_min_play_seconds":    "import.min_play_seconds",
	"import_dry_run":             "import.dry_run",
	"import_offline_epoch_guard": "import.offline_epoch_guard",

	"loader_workers": "loader.workers",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"metrics_file": "metrics.file",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - LISTENBRAINZ_TOKEN -> listenbrainz.token
//   - IMPORT_MIN_PLAY_SECONDS -> import.min_play_seconds
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated variables stay out of the config.
	return ""
}
