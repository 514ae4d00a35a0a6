// Package config loads and validates the pulse configuration file.
package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/robertmeta/pulse/model"
	"github.com/robertmeta/pulse/timerange"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Config is the on-disk configuration.
type Config struct {
	DefaultRange string         `yaml:"default_range"`
	RequireDate  bool           `yaml:"require_date"`
	Retention    string         `yaml:"retention"`
	Sources      []model.Source `yaml:"sources"`
}

// DefaultRangeDuration parses the configured default search range, falling
// back to two hours.
func (c *Config) DefaultRangeDuration() time.Duration {
	d, err := timerange.ParseRange(c.DefaultRange)
	if err != nil {
		return 2 * time.Hour
	}
	return d
}

// RetentionDuration parses the archive retention window, falling back to 30
// days.
func (c *Config) RetentionDuration() time.Duration {
	d, err := timerange.ParseRange(c.Retention)
	if err != nil {
		return timerange.Days(30)
	}
	return d
}

// EnabledSources returns the sources that are switched on.
func (c *Config) EnabledSources() []model.Source {
	var out []model.Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// SourcesMatching returns the enabled sources whose type is listed in the
// selector ("reddit,x"). An empty selector means all enabled sources.
func (c *Config) SourcesMatching(selector string) []model.Source {
	enabled := c.EnabledSources()
	if selector == "" || selector == "all" {
		return enabled
	}

	wanted := map[string]bool{}
	for _, t := range strings.Split(selector, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[t] = true
		}
	}

	var out []model.Source
	for _, s := range enabled {
		if wanted[s.Type] || wanted[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "pulse", "config.yaml")
}

// DefaultCacheDir returns the per-user result cache directory.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "pulse", "results")
}

// DefaultArchivePath returns the per-user archive database location.
func DefaultArchivePath() string {
	return filepath.Join(xdg.CacheHome, "pulse", "archive.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path, or the default location when path is
// empty. On first run the embedded defaults are written out and used.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Write defaults to config path on first run
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config back to path (used by OPML import).
func Save(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every configured source for a name, a known type, and an
// http(s) URL.
func Validate(cfg *Config) error {
	validTypes := map[string]bool{"reddit": true, "x": true, "rss": true}
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
		if !validTypes[s.Type] {
			return fmt.Errorf("source %q: unknown type %q (valid: reddit, x, rss)", s.Name, s.Type)
		}
	}
	return nil
}
