// ABOUTME: Configuration for the document store backend connection
// ABOUTME: JSON config at the XDG data path with .env overrides
package docstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	// DefaultCharmHost is the self-hosted 2389 research server.
	DefaultCharmHost = "charm.2389.dev"

	// AppName is the application name for the charm KV database.
	AppName = "leadbatch"

	// ConfigFileName is where we store local config.
	ConfigFileName = "store-config.json"
)

// Config holds document store connection settings and batch tuning knobs.
type Config struct {
	// Host is the charm server hostname (default: charm.2389.dev)
	Host string `json:"host,omitempty"`

	// AutoSync enables automatic sync after every write operation
	AutoSync bool `json:"auto_sync"`

	// HardCeiling overrides the per-document record ceiling when > 0
	HardCeiling int `json:"hard_ceiling,omitempty"`
}

// DefaultConfig returns a new config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     DefaultCharmHost,
		AutoSync: true,
	}
}

// configPath returns the path to the config file.
func configPath() (string, error) {
	dataDir := filepath.Join(xdg.DataHome, AppName)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dataDir, ConfigFileName), nil
}

// LoadConfig loads config from disk, or returns defaults if not found.
// A .env file in the working directory and LEADBATCH_* environment
// variables override the file values.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path, err := configPath()
	if err == nil {
		if data, err := os.ReadFile(path); err == nil {
			// Invalid config falls through to defaults.
			_ = json.Unmarshal(data, cfg)
		}
	}

	if cfg.Host == "" {
		cfg.Host = DefaultCharmHost
	}

	if host := os.Getenv("LEADBATCH_CHARM_HOST"); host != "" {
		cfg.Host = host
	}
	if v := os.Getenv("LEADBATCH_AUTO_SYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoSync = b
		}
	}
	if v := os.Getenv("LEADBATCH_HARD_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HardCeiling = n
		}
	}

	return cfg, nil
}

// Save persists the config to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
