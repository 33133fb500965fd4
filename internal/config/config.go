// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

// Package config loads gateway configuration from defaults, an optional YAML
// file, and command-line flags, in that precedence order.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Storage backend names.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the gateway's runtime configuration.
type Config struct {
	ListenAddr        string        `koanf:"listen_addr"`
	MetricsAddr       string        `koanf:"metrics_addr"`
	Storage           string        `koanf:"storage"`
	DatabaseURL       string        `koanf:"database_url"`
	TokenSecret       string        `koanf:"token_secret"`
	BacklogLimit      int           `koanf:"backlog_limit"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	LogFormat         string        `koanf:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		MetricsAddr:       "127.0.0.1:9100",
		Storage:           StoragePostgres,
		BacklogLimit:      50,
		HeartbeatInterval: 30 * time.Second,
		LogFormat:         "json",
	}
}

// Load merges the optional YAML file at path and the given flag set over the
// defaults. A missing path is fine; a named file that fails to parse is not.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}
	return cfg, nil
}

// Validate checks the configuration is usable before anything starts.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return oops.Code("CONFIG_INVALID").
			Errorf("storage must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if c.Storage == StoragePostgres && c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required for postgres storage")
	}
	if c.BacklogLimit <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("backlog_limit must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("heartbeat_interval must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}
