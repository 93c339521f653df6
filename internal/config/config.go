package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.leadline/config.toml.
type Config struct {
	DefaultSession      string `toml:"default_session"`
	BackendURL          string `toml:"backend_url"`
	BackendToken        string `toml:"backend_token"`
	APIListen           string `toml:"api_listen"`
	DashboardOrigin     string `toml:"dashboard_origin"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// PollInterval returns the reconciliation period, defaulting to 10s.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Listen returns the agent API listen address, defaulting to localhost.
func (c *Config) Listen() string {
	if c.APIListen == "" {
		return "127.0.0.1:7843"
	}
	return c.APIListen
}

// Origin returns the dashboard origin allowed by CORS, defaulting to the
// local dev server.
func (c *Config) Origin() string {
	if c.DashboardOrigin == "" {
		return "http://localhost:3000"
	}
	return c.DashboardOrigin
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
