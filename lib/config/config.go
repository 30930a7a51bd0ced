// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for GitChain components.
//
// Configuration is loaded from a single file specified by:
//   - GITCHAIN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for GitChain.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Store configures the versioned container store.
	Store StoreConfig `yaml:"store"`

	// Batch configures Merkle batch sealing.
	Batch BatchConfig `yaml:"batch"`

	// Anchor configures ledger anchoring.
	Anchor AnchorConfig `yaml:"anchor"`

	// Cache configures the resolver cache.
	Cache CacheConfig `yaml:"cache"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Store  *StoreConfig  `yaml:"store,omitempty"`
	Batch  *BatchConfig  `yaml:"batch,omitempty"`
	Anchor *AnchorConfig `yaml:"anchor,omitempty"`
	Cache  *CacheConfig  `yaml:"cache,omitempty"`
}

// StoreConfig configures the versioned container store.
type StoreConfig struct {
	// Path is the SQLite database file for container commits and batches.
	// Default: ${GITCHAIN_ROOT}/gitchain.db
	Path string `yaml:"path"`

	// PoolSize is the number of SQLite connections in the pool.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// BatchConfig configures Merkle batch sealing.
type BatchConfig struct {
	// MaxPending is the pending fingerprint count that triggers an
	// immediate seal, ahead of the interval timer.
	// Default: 256
	MaxPending int `yaml:"max_pending"`

	// Interval is how often the daemon seals pending fingerprints
	// into a batch. Parsed as a Go duration string.
	// Default: 5m
	Interval string `yaml:"interval"`
}

// AnchorConfig configures ledger anchoring.
type AnchorConfig struct {
	// Disabled turns off ledger submission entirely. Batches still
	// seal and proofs still resolve, but nothing reaches the ledger
	// and containers never become verified.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// Network names the target ledger network.
	// Default: development
	Network string `yaml:"network"`

	// Endpoint is the ledger RPC endpoint URL.
	Endpoint string `yaml:"endpoint"`

	// Contract is the certification contract address on the ledger.
	Contract string `yaml:"contract"`

	// Confirmations is the block depth required before a submitted
	// batch is treated as final.
	// Default: 3
	Confirmations int `yaml:"confirmations"`

	// MaxAttempts bounds submission retries for a batch.
	// Default: 5
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the delay before the first retry; doubles on
	// each subsequent attempt. Parsed as a Go duration string.
	// Default: 2s
	InitialBackoff string `yaml:"initial_backoff"`
}

// CacheConfig configures the resolver cache.
type CacheConfig struct {
	// Enabled turns resolution caching on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// TTL is how long a cached resolution stays fresh. Parsed as a
	// Go duration string.
	// Default: 5m
	TTL string `yaml:"ttl"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "gitchain")

	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Path:     filepath.Join(defaultRoot, "gitchain.db"),
			PoolSize: 4,
		},
		Batch: BatchConfig{
			MaxPending: 256,
			Interval:   "5m",
		},
		Anchor: AnchorConfig{
			Disabled:       false,
			Network:        "development",
			Confirmations:  3,
			MaxAttempts:    5,
			InitialBackoff: "2s",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "5m",
		},
	}
}

// Load loads configuration from GITCHAIN_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if GITCHAIN_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("GITCHAIN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("GITCHAIN_CONFIG environment variable not set; " +
			"set it to the path of your gitchain.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: anchoring must be configured explicitly,
		// never silently disabled.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Anchor: &AnchorConfig{
					Network:       "mainnet",
					Confirmations: 12,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Store != nil {
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Batch != nil {
		if overrides.Batch.MaxPending != 0 {
			c.Batch.MaxPending = overrides.Batch.MaxPending
		}
		if overrides.Batch.Interval != "" {
			c.Batch.Interval = overrides.Batch.Interval
		}
	}

	if overrides.Anchor != nil {
		// Disabled is a bool, so we always apply it from overrides.
		c.Anchor.Disabled = overrides.Anchor.Disabled
		if overrides.Anchor.Network != "" {
			c.Anchor.Network = overrides.Anchor.Network
		}
		if overrides.Anchor.Endpoint != "" {
			c.Anchor.Endpoint = overrides.Anchor.Endpoint
		}
		if overrides.Anchor.Contract != "" {
			c.Anchor.Contract = overrides.Anchor.Contract
		}
		if overrides.Anchor.Confirmations != 0 {
			c.Anchor.Confirmations = overrides.Anchor.Confirmations
		}
		if overrides.Anchor.MaxAttempts != 0 {
			c.Anchor.MaxAttempts = overrides.Anchor.MaxAttempts
		}
		if overrides.Anchor.InitialBackoff != "" {
			c.Anchor.InitialBackoff = overrides.Anchor.InitialBackoff
		}
	}

	if overrides.Cache != nil {
		c.Cache.Enabled = overrides.Cache.Enabled
		if overrides.Cache.TTL != "" {
			c.Cache.TTL = overrides.Cache.TTL
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"GITCHAIN_ROOT": filepath.Dir(c.Store.Path),
		"HOME":          os.Getenv("HOME"),
	}

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Anchor.Endpoint = expandVars(c.Anchor.Endpoint, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("store.pool_size must be at least 1"))
	}

	if c.Batch.MaxPending < 1 {
		errs = append(errs, fmt.Errorf("batch.max_pending must be at least 1"))
	}
	if _, err := time.ParseDuration(c.Batch.Interval); err != nil {
		errs = append(errs, fmt.Errorf("batch.interval: %w", err))
	}

	if !c.Anchor.Disabled {
		if c.Anchor.Network == "" {
			errs = append(errs, fmt.Errorf("anchor.network is required"))
		}
		if c.Anchor.Confirmations < 1 {
			errs = append(errs, fmt.Errorf("anchor.confirmations must be at least 1"))
		}
		if c.Anchor.MaxAttempts < 1 {
			errs = append(errs, fmt.Errorf("anchor.max_attempts must be at least 1"))
		}
		if _, err := time.ParseDuration(c.Anchor.InitialBackoff); err != nil {
			errs = append(errs, fmt.Errorf("anchor.initial_backoff: %w", err))
		}
	}

	if c.Cache.Enabled {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			errs = append(errs, fmt.Errorf("cache.ttl: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// BatchInterval returns the parsed seal interval. Call Validate first;
// an unparseable value falls back to the default.
func (c *Config) BatchInterval() time.Duration {
	d, err := time.ParseDuration(c.Batch.Interval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// AnchorBackoff returns the parsed initial retry backoff.
func (c *Config) AnchorBackoff() time.Duration {
	d, err := time.ParseDuration(c.Anchor.InitialBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// CacheTTL returns the parsed resolver cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// EnsurePaths creates the store directory if it doesn't exist.
func (c *Config) EnsurePaths() error {
	directory := filepath.Dir(c.Store.Path)
	if directory == "" || directory == "." {
		return nil
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
