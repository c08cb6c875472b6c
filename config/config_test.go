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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default(): %v", err)
	}
}

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`listenAddr: ":9999"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if cfg.DefaultBatchSize != Default().DefaultBatchSize {
		t.Fatalf("DefaultBatchSize = %d, want default %d", cfg.DefaultBatchSize, Default().DefaultBatchSize)
	}
	if cfg.DefaultTimeoutSeconds != Default().DefaultTimeoutSeconds {
		t.Fatalf("DefaultTimeoutSeconds = %d, want default %d", cfg.DefaultTimeoutSeconds, Default().DefaultTimeoutSeconds)
	}
}

func TestParseOverridesEveryField(t *testing.T) {
	yaml := []byte(`
defaultBatchSize: 500
defaultTimeoutSeconds: 30
listenAddr: "127.0.0.1:8530"
autocertCacheDir: "/var/cache/certs"
autocertHosts:
  - example.com
  - peer2.example.com
`)
	cfg, err := Parse(yaml)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Config{
		DefaultBatchSize:      500,
		DefaultTimeoutSeconds: 30,
		ListenAddr:            "127.0.0.1:8530",
		AutocertCacheDir:      "/var/cache/certs",
		AutocertHosts:         []string{"example.com", "peer2.example.com"},
	}
	if cfg.DefaultBatchSize != want.DefaultBatchSize ||
		cfg.DefaultTimeoutSeconds != want.DefaultTimeoutSeconds ||
		cfg.ListenAddr != want.ListenAddr ||
		cfg.AutocertCacheDir != want.AutocertCacheDir ||
		len(cfg.AutocertHosts) != len(want.AutocertHosts) {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
	for i := range want.AutocertHosts {
		if cfg.AutocertHosts[i] != want.AutocertHosts[i] {
			t.Fatalf("AutocertHosts[%d] = %q, want %q", i, cfg.AutocertHosts[i], want.AutocertHosts[i])
		}
	}
}

func TestParseRejectsNonPositiveBatchSize(t *testing.T) {
	_, err := Parse([]byte(`defaultBatchSize: 0`))
	if err == nil {
		t.Fatal("expected error for defaultBatchSize: 0")
	}
}

func TestParseRejectsEmptyListenAddr(t *testing.T) {
	_, err := Parse([]byte(`listenAddr: ""`))
	if err == nil {
		t.Fatal("expected error for empty listenAddr")
	}
}

func TestParseRejectsAutocertWithoutHosts(t *testing.T) {
	_, err := Parse([]byte(`autocertCacheDir: "/var/cache/certs"`))
	if err == nil {
		t.Fatal("expected error for autocertCacheDir without autocertHosts")
	}
}

func TestLoadRoundTripsThroughFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aqlengine.yaml")
	body := []byte("listenAddr: \":7000\"\ndefaultBatchSize: 250\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.DefaultBatchSize != 250 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMarshalProducesParsableYAML(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ":1234"
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	roundTripped, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()): %v", err)
	}
	if roundTripped.ListenAddr != cfg.ListenAddr {
		t.Fatalf("ListenAddr = %q, want %q", roundTripped.ListenAddr, cfg.ListenAddr)
	}
}
