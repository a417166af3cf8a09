package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix         = "KBSEARCH_"
	defaultConfigPath = "kbsearch.yaml"
)

// ConfigPath is the config file to load: $KBSEARCH_CONFIG or kbsearch.yaml.
func ConfigPath() string {
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// LoadEnvFile loads variables from .env files into the environment.
// Variables already set are left alone. Missing files are not an error.
func LoadEnvFile(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to load env file: %w", err)
	}
	return nil
}

// LoadConfig returns DefaultConfig overridden by the YAML file at path
// (if it exists) and then by KBSEARCH_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig
	cfg.Extensions = slices.Clone(DefaultConfig.Extensions)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("unable to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("unable to read %s: %w", path, err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with KBSEARCH_* variables found by lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("DOCUMENTS_DIR", &cfg.DocumentsDir)
	str("OUTPUT_DIR", &cfg.OutputDir)
	str("LANGUAGE", &cfg.Language)
	str("HOST", &cfg.Host)
	str("LOG_LEVEL", &cfg.LogLevel)
	num("TOP_K", &cfg.TopK)
	num("EXCERPT_WINDOW", &cfg.ExcerptWindow)
	num("DPI", &cfg.DPI)
	num("CONCURRENCY", &cfg.MaxConcurrency)
	num("PORT", &cfg.Port)
	flag("HIGHLIGHT", &cfg.Highlight)
	flag("DROP_STOPWORDS", &cfg.DropStopwords)

	if v, ok := lookup(envPrefix + "EXTENSIONS"); ok && v != "" {
		cfg.Extensions = strings.Split(v, ",")
	}
	if v, ok := lookup(envPrefix + "IMAGE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sIMAGE_TTL: %w", envPrefix, err))
		} else {
			cfg.ImageTTL = d
		}
	}

	return errors.Join(errs...)
}
