// Package config loads client and endpoint settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBaseURL   = "LUCI_RPC_BASEURL"
	EnvSessionID = "LUCI_RPC_SESSIONID"
	EnvTimeout   = "LUCI_RPC_TIMEOUT"
	EnvEtcd      = "LUCI_RPC_ETCD"
)

// Config holds the merged settings.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	SessionID string `yaml:"session_id"`
	// RPCTimeout is in seconds, as LuCI's rpctimeout.
	RPCTimeout  int    `yaml:"rpc_timeout"`
	Fingerprint string `yaml:"fingerprint,omitempty"`

	RateLimit RateLimit `yaml:"rate_limit"`

	Etcd     []string `yaml:"etcd,omitempty"`
	Router   string   `yaml:"router,omitempty"`
	Balancer string   `yaml:"balancer,omitempty"`

	Listen   string `yaml:"listen"`
	Fixture  string `yaml:"fixture,omitempty"`
	LogLevel string `yaml:"log_level"`
}

// RateLimit configures client-side throttling. A zero rate disables it.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BaseURL:    "/cgi-bin/luci/admin/ubus",
		SessionID:  "00000000000000000000000000000000",
		RPCTimeout: 5,
		Balancer:   "roundrobin",
		Listen:     "127.0.0.1:8080",
		LogLevel:   "info",
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvSessionID); ok && v != "" {
		c.SessionID = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.RPCTimeout = n
	}
	if v, ok := lookup(EnvEtcd); ok && v != "" {
		c.Etcd = strings.Split(v, ",")
	}
	return nil
}

// Validate rejects settings no client could run with.
func (c *Config) Validate() error {
	if c.RPCTimeout < 0 {
		return fmt.Errorf("rpc_timeout must not be negative, got %d", c.RPCTimeout)
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if len(c.Etcd) > 0 && c.Router == "" {
		return fmt.Errorf("router is required when etcd endpoints are set")
	}
	return nil
}

// Timeout is the per-request timeout; a zero setting falls back to 5s.
func (c *Config) Timeout() time.Duration {
	if c.RPCTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.RPCTimeout) * time.Second
}
