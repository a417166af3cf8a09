package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/abiiranathan/kbsearch/search"
)

// Config holds the configuration for the CLI.
type Config struct {
	// Directory of PDF files scanned on every search.
	DocumentsDir string `yaml:"documents_dir"`

	// Directory the rendered page images are written to.
	OutputDir string `yaml:"output_dir"`

	// File extensions to scan. Default is [".pdf"].
	Extensions []string `yaml:"extensions"`

	// Maximum number of pages returned per search.
	TopK int `yaml:"top_k"`

	// Number of characters kept around the first match in excerpts.
	ExcerptWindow int `yaml:"excerpt_window"`

	// Wrap matched terms in excerpts with "**".
	Highlight bool `yaml:"highlight"`

	// Drop stopwords of Language from queries.
	DropStopwords bool   `yaml:"drop_stopwords"`
	Language      string `yaml:"language"`

	// Resolution of rendered page images.
	DPI int `yaml:"dpi"`

	// Max files processed at a time.
	// Large values will increase CPU and memory usage.
	MaxConcurrency int `yaml:"concurrency"`

	// HTTP server address.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Rendered images older than this are removed by the HTTP server.
	// Zero keeps them forever.
	ImageTTL time.Duration `yaml:"image_ttl"`

	// debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Query for the search subcommand.
	Query string `yaml:"-"`
}

var DefaultConfig = Config{
	DocumentsDir:   "study_notes",
	OutputDir:      "mcp_images",
	Extensions:     []string{".pdf"},
	TopK:           search.DefaultTopK,
	ExcerptWindow:  search.DefaultWindow,
	Language:       "en",
	DPI:            150,
	MaxConcurrency: 4,
	Host:           "0.0.0.0",
	Port:           8050,
	LogLevel:       "info",
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DocumentsDir == "":
		return errors.New("documents directory is required")
	case c.OutputDir == "":
		return errors.New("output directory is required")
	case c.TopK < 1:
		return fmt.Errorf("top_k must be at least 1, got %d", c.TopK)
	case c.ExcerptWindow < 1:
		return fmt.Errorf("excerpt_window must be at least 1, got %d", c.ExcerptWindow)
	case c.DPI < 36 || c.DPI > 600:
		return fmt.Errorf("dpi must be between 36 and 600, got %d", c.DPI)
	case c.MaxConcurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", c.MaxConcurrency)
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.ImageTTL < 0:
		return fmt.Errorf("image_ttl must not be negative, got %s", c.ImageTTL)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SearchOptions returns the search options described by the config.
func (c *Config) SearchOptions() search.Options {
	return search.Options{
		DocumentsDir:  c.DocumentsDir,
		Extensions:    c.Extensions,
		TopK:          c.TopK,
		Window:        c.ExcerptWindow,
		Highlight:     c.Highlight,
		DropStopwords: c.DropStopwords,
		Language:      c.Language,
		Concurrency:   c.MaxConcurrency,
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
