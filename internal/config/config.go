// Package config loads process settings from the environment.
//
// Values come from, in increasing precedence: defaults, .env files, the
// process environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the leadflow process.
type Config struct {
	// SQLite database path.
	DB string `env:"LEADFLOW_DB" envDefault:"leadflow.db"`

	// Time between cycles, and whether a cycle fires immediately on start.
	Period     time.Duration `env:"LEADFLOW_PERIOD" envDefault:"5m"`
	RunOnStart bool          `env:"LEADFLOW_RUN_ON_START" envDefault:"true"`

	// Concurrent dispatches per cycle.
	Workers int `env:"LEADFLOW_WORKERS" envDefault:"4"`

	Log LogConfig `envPrefix:"LEADFLOW_LOG_"`
}

// LogConfig configures logging.Setup.
//
// Level is one of debug, info, warn, error. Format is text or json. An empty
// File logs to stderr only; otherwise records are also written to File,
// rotated by size with MaxBackups old files kept for MaxAgeDays.
type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"text"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"28"`
	Compress   bool   `env:"COMPRESS" envDefault:"false"`
}

// Load reads the given .env files (missing files are skipped) and parses the
// environment into a Config. With no files, ".env" in the working directory
// is tried. Variables already set in the environment win over .env values.
//
// Load does not range-check values; call Validate once overrides are applied.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("LEADFLOW_DB must not be empty"))
	}
	if c.Period <= 0 {
		errs = append(errs, fmt.Errorf("LEADFLOW_PERIOD must be positive, got %s", c.Period))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("LEADFLOW_WORKERS must be at least 1, got %d", c.Workers))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LEADFLOW_LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LEADFLOW_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
