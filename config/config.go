// Copyright (C) 2026 dociq, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the small set of engine-wide tunables a
// deployment adjusts per environment: default batch size, default
// pull-protocol timeout, and the cluster RPC listen address (spec.md
// §2, §6). Definitions are YAML-shaped the same way db.Definition is
// in the broader pack, and parsed with sigs.k8s.io/yaml so the same
// struct also round-trips through encoding/json.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config holds the engine's tunables as read from a config file. No
// package in this module reads a Config itself; a caller passes its
// values on to engine.Query and cluster/server. Zero values are not
// valid configuration; use Default as a starting point.
type Config struct {
	// DefaultBatchSize is the atMost for the root GetSome call (for
	// example engine.Query.Run's atMost) when a caller doesn't
	// otherwise size its own batches.
	DefaultBatchSize int `json:"defaultBatchSize"`

	// DefaultTimeoutSeconds bounds how long a single cluster RPC call
	// waits for a peer, in seconds. cluster/client.Client does not read
	// this field; its HTTP timeout is set where the Client is built.
	DefaultTimeoutSeconds int `json:"defaultTimeoutSeconds"`

	// ListenAddr is the address cluster/server.Server.ListenAndServe
	// binds to, e.g. ":8529".
	ListenAddr string `json:"listenAddr"`

	// AutocertCacheDir, when non-empty, enables
	// cluster/server.AutocertTLSConfig for ListenAddr instead of
	// serving plaintext.
	AutocertCacheDir string `json:"autocertCacheDir,omitempty"`

	// AutocertHosts lists the hostnames autocert is willing to issue
	// certificates for. Required when AutocertCacheDir is set.
	AutocertHosts []string `json:"autocertHosts,omitempty"`
}

// Default returns the tunables used when no config file is supplied.
func Default() Config {
	return Config{
		DefaultBatchSize:      1000,
		DefaultTimeoutSeconds: 3600,
		ListenAddr:            ":8529",
	}
}

// Load reads and parses a YAML (or JSON, which is a YAML subset)
// config file at path, filling in any fields the file leaves unset
// with Default's. A field the file sets to zero keeps that value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes data as YAML into a Config, applying Default for any
// field left unset.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a Config that would make the engine or cluster
// server misbehave (zero/negative sizes, a missing listen address, an
// autocert cache dir with no whitelisted hosts).
func (c Config) Validate() error {
	if c.DefaultBatchSize <= 0 {
		return fmt.Errorf("config: defaultBatchSize must be positive, got %d", c.DefaultBatchSize)
	}
	if c.DefaultTimeoutSeconds <= 0 {
		return fmt.Errorf("config: defaultTimeoutSeconds must be positive, got %d", c.DefaultTimeoutSeconds)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listenAddr must not be empty")
	}
	if c.AutocertCacheDir != "" && len(c.AutocertHosts) == 0 {
		return fmt.Errorf("config: autocertCacheDir set without autocertHosts")
	}
	return nil
}

// Marshal renders cfg back to YAML, e.g. to write out an edited copy.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
