// Package config loads the optional schemapack.yaml settings file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is the catch-all bucket for tables no keyword matches.
const DefaultCategory = "business_core"

// Category pairs a category name with the keywords that select it. The
// category list is ordered: the first category whose keyword matches a
// table name wins, so the list must not be modeled as a map.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Statistics configures the statistics engine.
type Statistics struct {
	// MaxDisplayedItems truncates the ranking lists (largest tables, most
	// referenced tables, and so on).
	MaxDisplayedItems int        `yaml:"max_displayed_items"`
	Categories        []Category `yaml:"categories"`
}

// Config is the full settings file.
type Config struct {
	LogLevel   string     `yaml:"log_level"`
	Statistics Statistics `yaml:"statistics"`
}

// Default returns the built-in settings used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Statistics: Statistics{
			MaxDisplayedItems: 10,
			Categories: []Category{
				{Name: "auth_security", Keywords: []string{"auth", "user", "permission", "role", "token", "session"}},
				{Name: "audit_logging", Keywords: []string{"log", "audit", "change", "history", "event"}},
				{Name: "configuration", Keywords: []string{"config", "setting", "param", "lookup", "type", "status", "category"}},
				{Name: "integration", Keywords: []string{"api", "webhook", "external", "import", "export", "sync"}},
				{Name: "temporary_cache", Keywords: []string{"temp", "cache", "queue", "pending"}},
			},
		},
	}
}

// Load reads the settings file at path, overlaying it on the defaults.
// A missing file is not an error: the defaults are returned as-is. A file
// that exists but does not parse is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if cfg.Statistics.MaxDisplayedItems <= 0 {
		cfg.Statistics.MaxDisplayedItems = Default().Statistics.MaxDisplayedItems
	}
	if len(cfg.Statistics.Categories) == 0 {
		cfg.Statistics.Categories = Default().Statistics.Categories
	}
	return cfg, nil
}
