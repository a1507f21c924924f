// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package redisync

import "github.com/maplestoria/redisync/internal/config"

// Config is the embedder-supplied configuration for one replication
// client: which primary to connect to, what replication state to resume
// from (or, by default, request a full resync), and the ambient knobs
// around logging, reconnect backoff, and network tuning.
type Config = config.Config

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
