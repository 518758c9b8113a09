// Package config loads the engine's operational configuration: the
// database path, scheduler intervals, cache backend, and which
// upgrade-disciplines to run. This and the other ambient concerns spec §1
// treats as external (CLI entry points, logging setup, configuration
// loading) still need a real home in a complete repository; this package
// is grounded on the teacher's viper-backed config.yaml loading in
// cmd/bd/config.go, generalized from YAML to TOML per this repo's own
// convention.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/brandond/obra-upgrades/internal/discipline"
)

// Config is the engine's full operational configuration (spec §6
// CLI/env, generalized: NO_SCRAPE and CACHE_TYPE plus the rest of the
// operational surface a deployable scheduler needs).
type Config struct {
	DatabasePath string `mapstructure:"database_path" toml:"database_path"`

	NoScrape bool `mapstructure:"no_scrape" toml:"no_scrape"`

	CacheType      string `mapstructure:"cache_type" toml:"cache_type"`
	CacheRedisAddr string `mapstructure:"cache_redis_addr" toml:"cache_redis_addr"`

	FullScrapeEvery   time.Duration `mapstructure:"full_scrape_every" toml:"full_scrape_every"`
	RecentScrapeEvery time.Duration `mapstructure:"recent_scrape_every" toml:"recent_scrape_every"`
	RecentScrapeDays  int           `mapstructure:"recent_scrape_days" toml:"recent_scrape_days"`

	Disciplines []string `mapstructure:"disciplines" toml:"disciplines"`

	APIAddr      string `mapstructure:"api_addr" toml:"api_addr"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`

	ScraperBaseURL string `mapstructure:"scraper_base_url" toml:"scraper_base_url"`
}

// defaults mirrors the struct tags above; viper needs explicit defaults
// registered before a partial or absent config file is read.
func defaults() map[string]interface{} {
	home, _ := os.UserHomeDir()
	return map[string]interface{}{
		"database_path":       filepath.Join(home, ".obra", "obra.sqlite3"),
		"no_scrape":           false,
		"cache_type":          "memory",
		"cache_redis_addr":    "localhost:6379",
		"full_scrape_every":   10 * time.Minute,
		"recent_scrape_every": 30 * time.Minute,
		"recent_scrape_days":  14,
		"disciplines":         disciplineStrings(discipline.All()),
		"api_addr":            ":8080",
		"otlp_endpoint":       "",
		"scraper_base_url":    "https://www.obra.org",
	}
}

func disciplineStrings(tags []discipline.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

// DefaultPath is $HOME/.obra/config.toml, the file Load reads by default.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".obra", "config.toml")
}

// Load reads path (TOML) layered over defaults, then applies the
// NO_SCRAPE/CACHE_TYPE environment overrides spec §6 names explicitly. A
// missing file is not an error: defaults alone are a valid configuration
// for a first run, matching cmd/bd/config.go's "don't error if it doesn't
// exist" validation path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("OBRA")
	v.AutomaticEnv()
	_ = v.BindEnv("no_scrape", "NO_SCRAPE")
	_ = v.BindEnv("cache_type", "CACHE_TYPE")

	if _, statErr := os.Stat(path); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ParsedDisciplines parses cfg.Disciplines into validated discipline.Tag values,
// falling back to discipline.All() when the list is empty or every entry
// is unrecognized.
func (c *Config) ParsedDisciplines() []discipline.Tag {
	var out []discipline.Tag
	for _, s := range c.Disciplines {
		tag := discipline.Tag(strings.TrimSpace(strings.ToLower(s)))
		if discipline.Valid(tag) {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return discipline.All()
	}
	return out
}

// Save writes cfg to path as TOML, creating parent directories as needed.
// Used by `obrad init`'s interactive wizard to persist the operator's
// choices (spec's expanded CLI surface).
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return toml.NewEncoder(f).Encode(cfg)
}

// Watch hot-reloads path, invoking onChange whenever it is rewritten on
// disk, the way the teacher's list.go debounces fsnotify write events
// against a live .beads directory. Returns a stop function; the caller
// owns the watcher's lifetime.
func Watch(path string, onChange func(*Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		var debounce *time.Timer
		const delay = 300 * time.Millisecond
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(delay, func() {
					cfg, err := Load(path)
					if err == nil {
						onChange(cfg)
					}
				})
			case <-watcher.Errors:
				// best effort: a watch error doesn't stop the process
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
