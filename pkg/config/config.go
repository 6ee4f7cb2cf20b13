// Package config handles loading and saving canopy configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/canopy/config.yaml
//   - Data:    ~/.local/share/canopy/ (default snapshot output)
//   - State:   ~/.local/state/canopy/ (expand-state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/canopy/pkg/debug"
)

// SortConfig holds the startup sibling ordering. Nil pointers mean the
// engine default, so a saved "false" survives a round trip.
type SortConfig struct {
	Order         string `yaml:"order,omitempty"` // name or date
	FoldersByName *bool  `yaml:"folders_by_name,omitempty"`
	SystemToTop   *bool  `yaml:"system_to_top,omitempty"`
}

// ViewConfig holds display preferences.
type ViewConfig struct {
	ShowAllFolders bool  `yaml:"show_all_folders,omitempty"`
	Animation      *bool `yaml:"animation,omitempty"` // nil means on
}

// EngineConfig tunes the tree engine. Durations are strings in
// time.ParseDuration form ("750ms", "2s"); bad values fall back.
type EngineConfig struct {
	FilterBudget     int    `yaml:"filter_budget,omitempty"`
	AutoOpenDelay    string `yaml:"auto_open_delay,omitempty"`
	TypeAheadTimeout string `yaml:"type_ahead_timeout,omitempty"`
}

// ThemeConfig overrides individual theme colors with hex values; empty
// fields keep the built-in theme.
type ThemeConfig struct {
	Accent    string `yaml:"accent,omitempty"`
	Selection string `yaml:"selection,omitempty"`
	Folder    string `yaml:"folder,omitempty"`
	Dimmed    string `yaml:"dimmed,omitempty"`
}

// WatcherConfig tunes change detection.
type WatcherConfig struct {
	PollInterval string `yaml:"poll_interval,omitempty"`
}

// Config is the top-level configuration for canopy.
type Config struct {
	Sort    SortConfig    `yaml:"sort,omitempty"`
	View    ViewConfig    `yaml:"view,omitempty"`
	Engine  EngineConfig  `yaml:"engine,omitempty"`
	Theme   ThemeConfig   `yaml:"theme,omitempty"`
	Watcher WatcherConfig `yaml:"watcher,omitempty"`
}

// DefaultConfig returns a Config whose accessors answer the engine
// defaults.
func DefaultConfig() Config {
	return Config{}
}

// xdgDir resolves one XDG base directory: the environment override when
// set, otherwise the given segments under the home directory. Either way
// the app subdirectory is appended.
func xdgDir(envVar string, segments ...string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, "canopy")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	parts := append([]string{home}, segments...)
	return filepath.Join(append(parts, "canopy")...)
}

// ConfigDir returns the XDG config directory for canopy.
func ConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// DataDir returns the XDG data directory for canopy.
func DataDir() string { return xdgDir("XDG_DATA_HOME", ".local", "share") }

// StateDir returns the XDG state directory for canopy.
func StateDir() string { return xdgDir("XDG_STATE_HOME", ".local", "state") }

// ConfigPath returns the full path to config.yaml, empty when no home
// directory can be resolved.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads config.yaml from the XDG config directory. Without a
// resolvable path the defaults apply.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. A missing file yields the
// defaults; so does a corrupt one, with a debug note, since a broken
// config must never keep the browser from starting.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		debug.Log("config: %s is corrupt, using defaults: %v", path, err)
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// Save writes cfg to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to a specific path, creating parent directories.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DateOrder reports whether siblings start date-sorted.
func (s SortConfig) DateOrder() bool { return s.Order == "date" }

// FoldersByNameEnabled reports the folders-stay-alphabetical preference;
// unset means enabled.
func (s SortConfig) FoldersByNameEnabled() bool {
	return s.FoldersByName == nil || *s.FoldersByName
}

// SystemToTopEnabled reports the pin-system-folders preference; unset
// means enabled.
func (s SortConfig) SystemToTopEnabled() bool {
	return s.SystemToTop == nil || *s.SystemToTop
}

// AnimationEnabled reports whether folder open/close animates; unset
// means enabled.
func (v ViewConfig) AnimationEnabled() bool {
	return v.Animation == nil || *v.Animation
}

// BudgetOr returns the configured filter budget, or def when unset.
func (e EngineConfig) BudgetOr(def int) int {
	if e.FilterBudget > 0 {
		return e.FilterBudget
	}
	return def
}

// AutoOpenDelayOr returns the configured dwell, or def when unset or
// unparseable.
func (e EngineConfig) AutoOpenDelayOr(def time.Duration) time.Duration {
	return durationOr(e.AutoOpenDelay, def)
}

// TypeAheadTimeoutOr returns the configured search timeout, or def.
func (e EngineConfig) TypeAheadTimeoutOr(def time.Duration) time.Duration {
	return durationOr(e.TypeAheadTimeout, def)
}

// PollIntervalOr returns the configured polling interval, or def.
func (w WatcherConfig) PollIntervalOr(def time.Duration) time.Duration {
	return durationOr(w.PollInterval, def)
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		debug.Log("config: bad duration %q, using %v", s, def)
		return def
	}
	return d
}
