// ABOUTME: Tests for configuration loading and environment overrides
// ABOUTME: Validates defaults, YAML parsing, and GUNTER_* variables

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.UpdateInterval != 24*time.Hour {
		t.Errorf("UpdateInterval = %v, want 24h", cfg.Database.UpdateInterval)
	}
	if cfg.API.DefaultLang != "en" {
		t.Errorf("DefaultLang = %q, want en", cfg.API.DefaultLang)
	}
	if !cfg.API.EnableStatus || !cfg.API.EnableDocs {
		t.Error("status and docs endpoints should be enabled by default")
	}
	if cfg.HTTP.Addr != ":6600" {
		t.Errorf("Addr = %q, want :6600", cfg.HTTP.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
database:
  external_url: https://example.com/city.mmdb
  update_interval: 6h
http:
  addr: ":9000"
api:
  default_lang: de
  enable_docs: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.ExternalURL != "https://example.com/city.mmdb" {
		t.Errorf("ExternalURL = %q", cfg.Database.ExternalURL)
	}
	if cfg.Database.UpdateInterval != 6*time.Hour {
		t.Errorf("UpdateInterval = %v, want 6h", cfg.Database.UpdateInterval)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.HTTP.Addr)
	}
	if cfg.API.DefaultLang != "de" {
		t.Errorf("DefaultLang = %q, want de", cfg.API.DefaultLang)
	}
	if cfg.API.EnableDocs {
		t.Error("EnableDocs should be false")
	}
	// Untouched values keep defaults.
	if !cfg.API.EnableStatus {
		t.Error("EnableStatus should keep default true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GUNTER_DB_URL", "ftp://example.org/db.mmdb")
	t.Setenv("GUNTER_DB_FILE", "/opt/custom.mmdb")
	t.Setenv("GUNTER_MAXMIND_LICENSE_KEY", "abc123")
	t.Setenv("GUNTER_LANG", "FR")
	t.Setenv("GUNTER_ENABLE_STATUS", "false")
	t.Setenv("GUNTER_UPDATE_INTERVAL", "12h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.ExternalURL != "ftp://example.org/db.mmdb" {
		t.Errorf("ExternalURL = %q", cfg.Database.ExternalURL)
	}
	if cfg.Database.LocalFile != "/opt/custom.mmdb" {
		t.Errorf("LocalFile = %q", cfg.Database.LocalFile)
	}
	if cfg.Database.LicenseKey != "abc123" {
		t.Errorf("LicenseKey = %q", cfg.Database.LicenseKey)
	}
	if cfg.Database.UpdateInterval != 12*time.Hour {
		t.Errorf("UpdateInterval = %v", cfg.Database.UpdateInterval)
	}
	if cfg.API.DefaultLang != "fr" {
		t.Errorf("DefaultLang = %q, want lowercased fr", cfg.API.DefaultLang)
	}
	if cfg.API.EnableStatus {
		t.Error("EnableStatus should be overridden to false")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  external_url: https://file.example/db.mmdb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GUNTER_DB_URL", "https://env.example/db.mmdb")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.ExternalURL != "https://env.example/db.mmdb" {
		t.Errorf("environment should win over file, got %q", cfg.Database.ExternalURL)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Database.UpdateInterval = 0 }},
		{"zero timeout", func(c *Config) { c.Database.FetchTimeout = 0 }},
		{"bad jitter", func(c *Config) { c.Database.Retry.JitterFraction = 1.5 }},
		{"bad multiplier", func(c *Config) { c.Database.Retry.Multiplier = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
