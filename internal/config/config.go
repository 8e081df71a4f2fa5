// Package config loads the YAML configuration of a sync run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAssemblyURL = "https://www.assembly.ca.gov/schedules-publications/assembly-daily-file"
	DefaultSenateURL   = "https://www.senate.ca.gov/calendar"
)

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 | pgx
	DSN    string `yaml:"dsn"`
}

type AssemblyConfig struct {
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

type SenateConfig struct {
	URL        string `yaml:"url"`
	WindowDays int    `yaml:"window_days"` // startDate..startDate+window_days
	Enabled    *bool  `yaml:"enabled"`
}

type IdentityConfig struct {
	UserAgent string `yaml:"user_agent"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Locale    string `yaml:"locale"`
}

type FetchConfig struct {
	Renderer          string           `yaml:"renderer"` // browser | http
	MaxRetries        int              `yaml:"max_retries"`
	PerAttemptTimeout time.Duration    `yaml:"per_attempt_timeout"`
	BaseDelay         time.Duration    `yaml:"base_delay"`
	Jitter            float64          `yaml:"jitter"` // randomization factor in [0,1)
	SettleDelay       time.Duration    `yaml:"settle_delay"`
	Identities        []IdentityConfig `yaml:"identities"`
}

type ResolverConfig struct {
	Type     string        `yaml:"type"` // sql | file
	Path     string        `yaml:"path"` // bill map for type=file
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node-exporter textfile collector target; empty disables
}

type LockConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Session  string         `yaml:"session"`  // e.g. 20252026
	Timezone string         `yaml:"timezone"` // calendar dates are local to the legislature
	Database DatabaseConfig `yaml:"database"`
	Assembly AssemblyConfig `yaml:"assembly"`
	Senate   SenateConfig   `yaml:"senate"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Resolver ResolverConfig `yaml:"resolver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Lock     LockConfig     `yaml:"lock"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns a configuration that runs against a local SQLite ledger
func Default() Config {
	return Config{
		Timezone: "America/Los_Angeles",
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "legcal.db"},
		Assembly: AssemblyConfig{URL: DefaultAssemblyURL},
		Senate:   SenateConfig{URL: DefaultSenateURL, WindowDays: 15},
		Fetch: FetchConfig{
			Renderer:          "browser",
			MaxRetries:        3,
			PerAttemptTimeout: 4 * time.Minute,
			BaseDelay:         3 * time.Second,
			Jitter:            0.5,
			SettleDelay:       time.Second,
		},
		Resolver: ResolverConfig{Type: "sql", CacheTTL: time.Hour},
		Lock:     LockConfig{Path: "legcal.lock", TTL: 2 * time.Hour},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// LEGCAL_DSN and LEGCAL_SESSION override the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LEGCAL_DSN")); v != "" {
		c.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("LEGCAL_SESSION")); v != "" {
		c.Session = v
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings a run cannot do without
func (c Config) Validate() error {
	var errs []error
	if c.Session == "" {
		errs = append(errs, errors.New("session is required"))
	}
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	switch c.Fetch.Renderer {
	case "browser", "http":
	default:
		errs = append(errs, fmt.Errorf("fetch.renderer must be browser or http, got %q", c.Fetch.Renderer))
	}
	if c.Fetch.MaxRetries < 1 {
		errs = append(errs, errors.New("fetch.max_retries must be at least 1"))
	}
	if c.Fetch.PerAttemptTimeout < 0 {
		errs = append(errs, errors.New("fetch.per_attempt_timeout must not be negative"))
	}
	if c.Fetch.Jitter < 0 || c.Fetch.Jitter >= 1 {
		errs = append(errs, errors.New("fetch.jitter must be in [0,1)"))
	}
	switch c.Resolver.Type {
	case "sql":
	case "file":
		if c.Resolver.Path == "" {
			errs = append(errs, errors.New("resolver.path is required for type file"))
		}
	default:
		errs = append(errs, fmt.Errorf("resolver.type must be sql or file, got %q", c.Resolver.Type))
	}
	if c.Senate.WindowDays < 0 {
		errs = append(errs, errors.New("senate.window_days must not be negative"))
	}
	return errors.Join(errs...)
}

// CheckAttemptBudget rejects a browser per_attempt_timeout shorter than need,
// the time a page's interactions and document read can take
func (c Config) CheckAttemptBudget(page string, need time.Duration) error {
	if c.Fetch.Renderer != "browser" || c.Fetch.PerAttemptTimeout == 0 {
		return nil
	}
	if c.Fetch.PerAttemptTimeout < need {
		return fmt.Errorf("fetch.per_attempt_timeout %s is shorter than the %s the %s page needs", c.Fetch.PerAttemptTimeout, need, page)
	}
	return nil
}

// Location returns the configured time zone
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AssemblyEnabled reports whether the Assembly pipeline runs (default true)
func (c Config) AssemblyEnabled() bool {
	return c.Assembly.Enabled == nil || *c.Assembly.Enabled
}

// SenateEnabled reports whether the Senate pipeline runs (default true)
func (c Config) SenateEnabled() bool {
	return c.Senate.Enabled == nil || *c.Senate.Enabled
}
