// Package config handles loading and saving opsboard configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/opsboard/config.yaml
//   - State:   ~/.local/state/opsboard/ (debug log)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/model"
)

const appName = "opsboard"

// Tenant is one organization whose records live in a single data file.
type Tenant struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
}

// IsEnabled reports whether the tenant should be loaded.
func (t Tenant) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// UncategorizedConfig controls the synthetic lane for records without a
// known category.
type UncategorizedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Label   string `yaml:"label,omitempty"`
}

// BoardConfig holds the column and category definitions.
type BoardConfig struct {
	Columns       []board.Column      `yaml:"columns,omitempty"`
	Categories    []board.Category    `yaml:"categories,omitempty"`
	Uncategorized UncategorizedConfig `yaml:"uncategorized,omitempty"`
}

// UIConfig holds TUI preferences.
type UIConfig struct {
	DefaultBucket  string `yaml:"default_bucket,omitempty"`  // due bucket token
	DefaultCreated string `yaml:"default_created,omitempty"` // creation bucket token
	DetailWidth    int    `yaml:"detail_width,omitempty"`    // glamour word wrap
}

// WatchConfig controls live reload.
type WatchConfig struct {
	DebounceMS int  `yaml:"debounce_ms,omitempty"`
	ForcePoll  bool `yaml:"force_poll,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Board   BoardConfig `yaml:"board"`
	Tenants []Tenant    `yaml:"tenants,omitempty"`
	UI      UIConfig    `yaml:"ui,omitempty"`
	Watch   WatchConfig `yaml:"watch,omitempty"`
}

// DefaultColumns returns one column per built-in status.
func DefaultColumns() []board.Column {
	titles := map[model.Status]string{
		model.StatusPending:    "Pending",
		model.StatusInProgress: "In progress",
		model.StatusCompleted:  "Completed",
		model.StatusArchived:   "Archived",
	}
	var cols []board.Column
	for _, s := range model.DefaultStatuses() {
		cols = append(cols, board.Column{ID: string(s), Title: titles[s], Status: string(s)})
	}
	return cols
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Board: BoardConfig{
			Columns:       DefaultColumns(),
			Uncategorized: UncategorizedConfig{Label: "Uncategorized"},
		},
		UI: UIConfig{
			DefaultBucket:  string(bucket.DueAll),
			DefaultCreated: string(bucket.CreatedAll),
			DetailWidth:    60,
		},
		Watch: WatchConfig{DebounceMS: 200},
	}
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Board.Columns) == 0 {
		cfg.Board.Columns = DefaultColumns()
	}
	for i := range cfg.Tenants {
		cfg.Tenants[i].Path = expandHome(cfg.Tenants[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the board definitions and bucket tokens.
func (c Config) Validate() error {
	seen := make(map[string]bool)
	for _, col := range c.Board.Columns {
		if strings.TrimSpace(col.Status) == "" {
			return fmt.Errorf("invalid config: column %q has no status", col.ID)
		}
		if seen[col.Status] {
			return fmt.Errorf("invalid config: duplicate column status %q", col.Status)
		}
		seen[col.Status] = true
	}
	names := make(map[string]bool)
	for _, t := range c.Tenants {
		if t.Name == "" {
			return fmt.Errorf("invalid config: tenant with path %q has no name", t.Path)
		}
		if strings.Contains(t.Name, ":") {
			return fmt.Errorf("invalid config: tenant name %q must not contain ':'", t.Name)
		}
		if names[t.Name] {
			return fmt.Errorf("invalid config: duplicate tenant %q", t.Name)
		}
		names[t.Name] = true
	}
	if _, err := bucket.ParseDue(c.UI.DefaultBucket); err != nil {
		return fmt.Errorf("invalid config: ui.default_bucket: %w", err)
	}
	if _, err := bucket.ParseCreated(c.UI.DefaultCreated); err != nil {
		return fmt.Errorf("invalid config: ui.default_created: %w", err)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
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

// FindTenant returns the tenant with the given name, or nil.
func (c Config) FindTenant(name string) *Tenant {
	for i := range c.Tenants {
		if strings.EqualFold(c.Tenants[i].Name, name) {
			return &c.Tenants[i]
		}
	}
	return nil
}

// UncategorizedLabel returns the synthetic lane label, or "" when disabled.
func (c Config) UncategorizedLabel() string {
	if !c.Board.Uncategorized.Enabled {
		return ""
	}
	if c.Board.Uncategorized.Label == "" {
		return "Uncategorized"
	}
	return c.Board.Uncategorized.Label
}

// DebounceDuration returns the watcher debounce window.
func (c Config) DebounceDuration() time.Duration {
	if c.Watch.DebounceMS <= 0 {
		return 0
	}
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
