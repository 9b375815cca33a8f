package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"coreupdater/internal/manifest"
)

// Config captures the updater settings for a host installation.
type Config struct {
	Version  int               `yaml:"version"`
	Manifest ManifestConfig    `yaml:"manifest"`
	Cores    CoresConfig       `yaml:"cores"`
	Defaults map[string]string `yaml:"default_cores,omitempty"`
}

// ManifestConfig points at the remote release catalog.
type ManifestConfig struct {
	URL string `yaml:"url"`
}

// CoresConfig controls which catalog entries are eligible and where bundles
// are installed.
type CoresConfig struct {
	Directory    string `yaml:"directory,omitempty"`
	Experimental bool   `yaml:"experimental"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Manifest: ManifestConfig{
			URL: manifest.DefaultURL,
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if strings.TrimSpace(c.Manifest.URL) == "" {
		c.Manifest.URL = defaults.Manifest.URL
	}
}

// DefaultCore returns the persisted default core for a system, if set.
func (c Config) DefaultCore(systemID string) (string, bool) {
	if c.Defaults == nil {
		return "", false
	}
	for sys, core := range c.Defaults {
		if strings.EqualFold(sys, systemID) && strings.TrimSpace(core) != "" {
			return strings.ToLower(core), true
		}
	}
	return "", false
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}
