// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads the YAML configuration an embedder supplies to
// describe a replication primary and the client's own behavior around it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for one replication client.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Replication ReplicationConfig `yaml:"replication"`
	Network     NetworkConfig     `yaml:"network"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Stats       StatsConfig       `yaml:"stats"`
}

// ServerConfig addresses the primary to replicate from.
type ServerConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// ReplicationConfig seeds the handshake's starting state. A client with no
// prior session always starts from the "?"/-1 pair, forcing a full
// resync; an embedder that persisted a previous FULLRESYNC's replication
// ID and offset elsewhere may supply them here, though this package makes
// no attempt to use them for a partial resync itself (see Non-goals).
type ReplicationConfig struct {
	ReplID     string `yaml:"repl_id"`
	ReplOffset int64  `yaml:"repl_offset"`
	DiscardRDB bool   `yaml:"discard_rdb"`
	AOF        bool   `yaml:"aof"`
}

// NetworkConfig tunes the underlying TCP connection.
type NetworkConfig struct {
	DSCP                string `yaml:"dscp"`
	LowLatency          bool   `yaml:"low_latency"`
	ThrottleBytesPerSec int64  `yaml:"throttle_bytes_per_sec"`
}

// RetryConfig holds reconnect backoff settings. They are loaded and
// defaulted, but no component of this module reads them: Client does not
// reconnect after a lost connection.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// LoggingConfig selects the slog handler and level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StatsConfig schedules the periodic replication-offset report.
type StatsConfig struct {
	Schedule string `yaml:"schedule"`
}

// Load reads and validates a YAML configuration file, filling in defaults
// for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Replication.ReplID == "" {
		c.Replication.ReplID = "?"
	}
	if c.Replication.ReplOffset == 0 {
		c.Replication.ReplOffset = -1
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = 1 * time.Second
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Stats.Schedule == "" {
		c.Stats.Schedule = "@every 30s"
	}
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Network.ThrottleBytesPerSec < 0 {
		return fmt.Errorf("network.throttle_bytes_per_sec must be >= 0")
	}
	return nil
}
