// Package config provides configuration management for trellis.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	trelliserrors "github.com/chartwell/trellis/internal/errors"
)

const (
	// ConfigFileName is the config file name inside TrellisDir.
	ConfigFileName = "config.yaml"
	// TrellisDir is the trellis configuration directory.
	TrellisDir = ".trellis"
)

// ServerConfig holds API server settings.
type ServerConfig struct {
	// Addr is the listen address for trellis serve.
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Dialect selects the storage engine: sqlite or postgres.
	Dialect string `yaml:"dialect"`

	// DSN overrides the database location. Empty means the default
	// SQLite file under .trellis/. Required for postgres.
	DSN string `yaml:"dsn,omitempty"`
}

// TracksConfig holds phase catalog settings.
type TracksConfig struct {
	// Dir overrides where project track catalogs are discovered.
	// Empty means .trellis/tracks.
	Dir string `yaml:"dir,omitempty"`
}

// EventsConfig holds event publisher settings.
type EventsConfig struct {
	// Buffer is the per-subscriber channel capacity. Zero means the
	// publisher default.
	Buffer int `yaml:"buffer"`
}

// Config represents the trellis configuration.
type Config struct {
	// Version is the config file version
	Version int `yaml:"version"`

	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Tracks   TracksConfig   `yaml:"tracks"`
	Events   EventsConfig   `yaml:"events"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Dialect: "sqlite",
		},
		Events: EventsConfig{
			Buffer: 64,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Version < 1 {
		return trelliserrors.ErrConfigInvalid("version", "must be at least 1")
	}
	switch c.Database.Dialect {
	case "sqlite", "postgres":
	default:
		return trelliserrors.ErrConfigInvalid("database.dialect",
			fmt.Sprintf("unsupported dialect %q", c.Database.Dialect))
	}
	if c.Database.Dialect == "postgres" && strings.TrimSpace(c.Database.DSN) == "" {
		return trelliserrors.ErrConfigInvalid("database.dsn", "required for postgres")
	}
	if c.Events.Buffer < 0 {
		return trelliserrors.ErrConfigInvalid("events.buffer", "must not be negative")
	}
	return nil
}

// ConfigPath returns the config file path under root.
func ConfigPath(root string) string {
	return filepath.Join(root, TrellisDir, ConfigFileName)
}

// Load loads the config for the project at root. A missing file
// yields the defaults; a malformed or invalid one is an error.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config for the project at root, creating the
// .trellis directory if needed.
func (c *Config) Save(root string) error {
	path := ConfigPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Init initializes the trellis directory structure at root.
func Init(root string, force bool) error {
	dir := filepath.Join(root, TrellisDir)
	if !force {
		if _, err := os.Stat(dir); err == nil {
			return trelliserrors.ErrAlreadyInitialized(dir)
		}
	}

	dirs := []string{
		dir,
		filepath.Join(dir, "tracks"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg := Default()
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// IsInitialized returns true if trellis is initialized at root.
func IsInitialized(root string) bool {
	_, err := os.Stat(filepath.Join(root, TrellisDir))
	return err == nil
}

// RequireInit returns an error if trellis is not initialized at root.
func RequireInit(root string) error {
	if !IsInitialized(root) {
		return trelliserrors.ErrNotInitialized()
	}
	return nil
}
