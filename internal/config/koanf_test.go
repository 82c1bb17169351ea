// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
)

const testToken = "6a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"

// isolate runs the test in an empty directory with every mapped variable
// unset, restoring the environment afterwards.
func isolate(t *testing.T) string {
	t.Helper()

	names := []string{ConfigPathEnvVar}
	for key := range envMappings {
		names = append(names, strings.ToUpper(key))
	}
	for _, name := range names {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.ListenBrainz.URL != "https://api.listenbrainz.org" {
		t.Errorf("ListenBrainz.URL = %q", cfg.ListenBrainz.URL)
	}
	if cfg.ListenBrainz.Token != "" {
		t.Errorf("ListenBrainz.Token should be empty by default, got %q", cfg.ListenBrainz.Token)
	}
	if cfg.ListenBrainz.Timeout != 60*time.Second {
		t.Errorf("ListenBrainz.Timeout = %v, want 60s", cfg.ListenBrainz.Timeout)
	}
	if cfg.ListenBrainz.BreakerEnabled() {
		t.Error("circuit breaker should be disabled by default")
	}
	if cfg.Import.BatchSize != 1000 {
		t.Errorf("Import.BatchSize = %d, want 1000", cfg.Import.BatchSize)
	}
	if cfg.Import.MinPlaySeconds != 30 {
		t.Errorf("Import.MinPlaySeconds = %d, want 30", cfg.Import.MinPlaySeconds)
	}
	if cfg.Import.Format != "auto" {
		t.Errorf("Import.Format = %q, want auto", cfg.Import.Format)
	}
	if cfg.Loader.Workers != 4 {
		t.Errorf("Loader.Workers = %d, want 4", cfg.Loader.Workers)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v, want info/console", cfg.Logging)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"LISTENBRAINZ_TOKEN", "listenbrainz.token"},
		{"LISTENBRAINZ_URL", "listenbrainz.url"},
		{"LISTENBRAINZ_REQUESTS_PER_SECOND", "listenbrainz.requests_per_second"},
		{"IMPORT_BATCH_SIZE", "import.batch_size"},
		{"IMPORT_MIN_PLAY_SECONDS", "import.min_play_seconds"},
		{"IMPORT_DRY_RUN", "import.dry_run"},
		{"LOADER_WORKERS", "loader.workers"},
		{"LOG_LEVEL", "logging.level"},
		{"METRICS_FILE", "metrics.file"},
		{"import_after", "import.after"},

		// Unmapped keys are skipped
		{"HOME", ""},
		{"PATH", ""},
		{"LISTENBRAINZ_SOMETHING", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(Options{Flags: map[string]any{"import.dry_run": true}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Import.BatchSize != 1000 || cfg.Import.MinPlaySeconds != 30 {
		t.Errorf("unexpected import defaults: %+v", cfg.Import)
	}
	if cfg.ListenBrainz.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.ListenBrainz.Timeout)
	}
	if len(cfg.Loader.SpotifyPatterns) != len(DefaultSpotifyPatterns) {
		t.Errorf("SpotifyPatterns = %v", cfg.Loader.SpotifyPatterns)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	isolate(t)

	_, err := Load(Options{})
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestLoad_TokenNormalized(t *testing.T) {
	isolate(t)
	t.Setenv("LISTENBRAINZ_TOKEN", strings.ReplaceAll(strings.ToUpper(testToken), "-", ""))

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenBrainz.Token != testToken {
		t.Errorf("Token = %q, want %q", cfg.ListenBrainz.Token, testToken)
	}
}

func TestLoad_InvalidToken(t *testing.T) {
	isolate(t)
	t.Setenv("LISTENBRAINZ_TOKEN", "not-a-token")

	_, err := Load(Options{})
	if err == nil || !strings.Contains(err.Error(), "listenbrainz.token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "custom.yaml", `
listenbrainz:
  token: `+testToken+`
  url: http://localhost:8100
  timeout: 15s
  requests_per_second: 2.5
import:
  batch_size: 250
  after: "2019-01-01"
  before: "2020-01-01 12:30"
  format: spotify
loader:
  workers: 8
  spotify_patterns:
    - '^my_spotify_\d+$'
logging:
  level: debug
  format: json
`)

	cfg, err := Load(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenBrainz.URL != "http://localhost:8100" {
		t.Errorf("URL = %q", cfg.ListenBrainz.URL)
	}
	if cfg.ListenBrainz.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.ListenBrainz.Timeout)
	}
	if cfg.ListenBrainz.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.ListenBrainz.RequestsPerSecond)
	}
	if cfg.Import.BatchSize != 250 || cfg.Import.Format != "spotify" {
		t.Errorf("Import = %+v", cfg.Import)
	}
	if cfg.Loader.Workers != 8 || len(cfg.Loader.SpotifyPatterns) != 1 {
		t.Errorf("Loader = %+v", cfg.Loader)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	// Values not in the file keep their defaults.
	if cfg.Import.MinPlaySeconds != 30 {
		t.Errorf("MinPlaySeconds = %d, want default 30", cfg.Import.MinPlaySeconds)
	}
	if len(cfg.Loader.ListenBrainzPatterns) != len(DefaultListenBrainzPatterns) {
		t.Errorf("ListenBrainzPatterns = %v", cfg.Loader.ListenBrainzPatterns)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "custom.toml", `
[listenbrainz]
token = "`+testToken+`"
timeout = "20s"

[import]
batch_size = 100
min_play_seconds = 0
dry_run = true

[metrics]
file = "/tmp/listenimport.prom"
`)

	cfg, err := Load(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenBrainz.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", cfg.ListenBrainz.Timeout)
	}
	if cfg.Import.BatchSize != 100 || cfg.Import.MinPlaySeconds != 0 || !cfg.Import.DryRun {
		t.Errorf("Import = %+v", cfg.Import)
	}
	if cfg.Metrics.File != "/tmp/listenimport.prom" {
		t.Errorf("Metrics.File = %q", cfg.Metrics.File)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "listenimport.yaml", `
listenbrainz:
  token: `+testToken+`
import:
  batch_size: 500
  min_play_seconds: 10
`)
	t.Setenv("IMPORT_BATCH_SIZE", "200")

	// File found by default path, overridden by env
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Import.BatchSize != 200 {
		t.Errorf("BatchSize = %d, want 200 from env", cfg.Import.BatchSize)
	}
	if cfg.Import.MinPlaySeconds != 10 {
		t.Errorf("MinPlaySeconds = %d, want 10 from file", cfg.Import.MinPlaySeconds)
	}

	// Explicit flags win over env
	cfg, err = Load(Options{ConfigPath: path, Flags: map[string]any{"import.batch_size": 100}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Import.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100 from flag", cfg.Import.BatchSize)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "elsewhere.yaml", "import:\n  dry_run: true\n  batch_size: 42\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Import.BatchSize != 42 {
		t.Errorf("BatchSize = %d, want 42", cfg.Import.BatchSize)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "LISTENBRAINZ_TOKEN="+testToken+"\nLOADER_WORKERS=6\n")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenBrainz.Token != testToken {
		t.Errorf("Token = %q, want value from .env", cfg.ListenBrainz.Token)
	}
	if cfg.Loader.Workers != 6 {
		t.Errorf("Workers = %d, want 6 from .env", cfg.Loader.Workers)
	}
}

func TestLoad_EnvFileDoesNotOverrideEnv(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "import.env", "LOADER_WORKERS=6\nIMPORT_DRY_RUN=true\n")
	t.Setenv("LOADER_WORKERS", "2")

	cfg, err := Load(Options{EnvFile: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Loader.Workers != 2 {
		t.Errorf("Workers = %d, want 2 from the environment", cfg.Loader.Workers)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "missing explicit config",
			opts: Options{ConfigPath: filepath.Join(dir, "nope.yaml")},
			want: "nope.yaml",
		},
		{
			name: "unsupported extension",
			opts: Options{ConfigPath: writeFile(t, dir, "config.ini", "[import]\n")},
			want: "unsupported extension",
		},
		{
			name: "malformed yaml",
			opts: Options{ConfigPath: writeFile(t, dir, "broken.yaml", "import: [unclosed\n")},
			want: "broken.yaml",
		},
		{
			name: "missing explicit env file",
			opts: Options{EnvFile: filepath.Join(dir, "missing.env")},
			want: "missing.env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestParserFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		wantTOML bool
		wantErr  bool
	}{
		{"listenimport.yaml", false, false},
		{"listenimport.yml", false, false},
		{"listenimport.toml", true, false},
		{"/etc/listenimport/CONFIG.TOML", true, false},
		{"listenimport.json", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := parserFor(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parserFor(%q) = %T, want error", tt.path, p)
				}
				return
			}
			if err != nil {
				t.Fatalf("parserFor(%q) error = %v", tt.path, err)
			}
			if _, isTOML := p.(*toml.TOML); isTOML != tt.wantTOML {
				t.Errorf("parserFor(%q) = %T", tt.path, p)
			}
		})
	}
}
