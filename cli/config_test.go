package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/abiiranathan/kbsearch/search"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DocumentsDir != "study_notes" || cfg.OutputDir != "mcp_images" {
		t.Errorf("unexpected directories %q %q", cfg.DocumentsDir, cfg.OutputDir)
	}
	if cfg.TopK != 5 || cfg.ExcerptWindow != 200 || cfg.DPI != 150 || cfg.Port != 8050 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must be valid: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbsearch.yaml")
	data := `
documents_dir: notes
top_k: 3
excerpt_window: 80
highlight: true
extensions: [".pdf", ".PDF"]
image_ttl: 30m
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DocumentsDir != "notes" || cfg.TopK != 3 || cfg.ExcerptWindow != 80 || !cfg.Highlight {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ImageTTL != 30*time.Minute {
		t.Errorf("expected image_ttl 30m, got %s", cfg.ImageTTL)
	}
	if !slices.Equal(cfg.Extensions, []string{".pdf", ".PDF"}) {
		t.Errorf("unexpected extensions %v", cfg.Extensions)
	}

	// Unset keys keep their defaults.
	if cfg.OutputDir != "mcp_images" || cfg.DPI != 150 {
		t.Errorf("defaults lost: %+v", cfg)
	}

	// Loading must not touch the defaults.
	if !slices.Equal(DefaultConfig.Extensions, []string{".pdf"}) || DefaultConfig.TopK != 5 {
		t.Errorf("DefaultConfig was modified: %+v", DefaultConfig)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbsearch.yaml")
	if err := os.WriteFile(path, []byte("top_k: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbsearch.yaml")
	if err := os.WriteFile(path, []byte("top_k: 3\nport: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KBSEARCH_TOP_K", "7")
	t.Setenv("KBSEARCH_DOCUMENTS_DIR", "library")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TopK != 7 || cfg.DocumentsDir != "library" {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected port from file, got %d", cfg.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KBSEARCH_OUTPUT_DIR":     "images",
		"KBSEARCH_DPI":            "300",
		"KBSEARCH_HIGHLIGHT":      "true",
		"KBSEARCH_DROP_STOPWORDS": "1",
		"KBSEARCH_EXTENSIONS":     ".pdf,.PDF",
		"KBSEARCH_IMAGE_TTL":      "1h",
		"KBSEARCH_LANGUAGE":       "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig
	if err := applyEnv(&cfg, lookup); err != nil {
		t.Fatal(err)
	}

	if cfg.OutputDir != "images" || cfg.DPI != 300 || !cfg.Highlight || !cfg.DropStopwords {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if cfg.ImageTTL != time.Hour {
		t.Errorf("expected 1h, got %s", cfg.ImageTTL)
	}
	if !slices.Equal(cfg.Extensions, []string{".pdf", ".PDF"}) {
		t.Errorf("unexpected extensions %v", cfg.Extensions)
	}
	if cfg.Language != "en" {
		t.Errorf("empty variables must be ignored, got language %q", cfg.Language)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	env := map[string]string{
		"KBSEARCH_TOP_K":     "many",
		"KBSEARCH_HIGHLIGHT": "perhaps",
		"KBSEARCH_IMAGE_TTL": "soon",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig
	err := applyEnv(&cfg, lookup)
	if err == nil {
		t.Fatal("expected an error")
	}

	for _, name := range []string{"KBSEARCH_TOP_K", "KBSEARCH_HIGHLIGHT", "KBSEARCH_IMAGE_TTL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
	if cfg.TopK != DefaultConfig.TopK {
		t.Errorf("invalid value applied: %d", cfg.TopK)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("KBSEARCH_CONFIG", "")
	if got := ConfigPath(); got != "kbsearch.yaml" {
		t.Errorf("expected kbsearch.yaml, got %q", got)
	}

	t.Setenv("KBSEARCH_CONFIG", "/etc/kbsearch.yaml")
	if got := ConfigPath(); got != "/etc/kbsearch.yaml" {
		t.Errorf("expected /etc/kbsearch.yaml, got %q", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("a missing .env file must be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KBSEARCH_TEST_ENV_FILE=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KBSEARCH_TEST_ENV_FILE", "")
	os.Unsetenv("KBSEARCH_TEST_ENV_FILE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("KBSEARCH_TEST_ENV_FILE"); got != "loaded" {
		t.Errorf("expected loaded, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty documents dir", func(c *Config) { c.DocumentsDir = "" }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"zero window", func(c *Config) { c.ExcerptWindow = 0 }},
		{"low dpi", func(c *Config) { c.DPI = 10 }},
		{"high dpi", func(c *Config) { c.DPI = 1200 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
		{"negative ttl", func(c *Config) { c.ImageTTL = -time.Second }},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSearchOptions(t *testing.T) {
	cfg := DefaultConfig
	cfg.TopK = 2
	cfg.Highlight = true

	opts := cfg.SearchOptions()
	want := search.Options{
		DocumentsDir: "study_notes",
		Extensions:   []string{".pdf"},
		TopK:         2,
		Window:       200,
		Highlight:    true,
		Language:     "en",
		Concurrency:  4,
	}

	if opts.DocumentsDir != want.DocumentsDir || opts.TopK != want.TopK || opts.Window != want.Window ||
		opts.Highlight != want.Highlight || opts.Language != want.Language || opts.Concurrency != want.Concurrency ||
		!slices.Equal(opts.Extensions, want.Extensions) {
		t.Errorf("expected %+v, got %+v", want, opts)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := DefaultConfig
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := NewLogger(&cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestPrintReport(t *testing.T) {
	report := &search.Report{
		Results: []search.Result{
			{Source: "a.pdf", Page: 2, Score: 3, Excerpt: "alpha alpha", Image: "out/a.png"},
		},
		Skipped: []string{"docs/b.pdf"},
	}

	var buf bytes.Buffer
	PrintReport(&buf, report)

	out := buf.String()
	for _, want := range []string{"a.pdf Page: 2 Score: 3", "out/a.png", "alpha alpha", "docs/b.pdf"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}
