// ABOUTME: Configuration loading and defaults for Gunter
// ABOUTME: Handles YAML config files and GUNTER_* environment variables

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration for Gunter.
type Config struct {
	// Database configures the GeoIP database sources and refresh behavior.
	Database DatabaseConfig `yaml:"database"`

	// HTTP server configuration.
	HTTP HTTPConfig `yaml:"http"`

	// API surface configuration.
	API APIConfig `yaml:"api"`

	// Whois lookup configuration.
	Whois WhoisConfig `yaml:"whois"`

	// Logging configuration.
	Log LogConfig `yaml:"log"`

	// Tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// DatabaseConfig holds GeoIP database source and update settings.
// At most one source is used at a time; see geodb.ResolveSource for
// the priority rules.
type DatabaseConfig struct {
	// ExternalURL is an http(s) or ftp(s) URL to a raw MMDB file.
	ExternalURL string `yaml:"external_url"`

	// LocalFile is a path to a custom MMDB file on disk.
	LocalFile string `yaml:"local_file"`

	// LicenseKey is a MaxMind license key for GeoLite2-City downloads.
	LicenseKey string `yaml:"license_key"`

	// DataDir is where downloaded database artifacts are stored.
	DataDir string `yaml:"data_dir"`

	// UpdateInterval is how often to refresh the database.
	UpdateInterval time.Duration `yaml:"update_interval"`

	// FetchTimeout bounds a single download attempt.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Retry configures retry behavior within a refresh attempt.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int `yaml:"max_retries"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64 `yaml:"multiplier"`

	// JitterFraction is the fraction of delay to randomize (0-1).
	JitterFraction float64 `yaml:"jitter_fraction"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// APIConfig holds settings for the HTTP API surface.
type APIConfig struct {
	// DefaultLang is the language used for geo record names when the
	// request does not specify one.
	DefaultLang string `yaml:"default_lang"`

	// EnableStatus toggles the /api/status endpoint.
	EnableStatus bool `yaml:"enable_status"`

	// EnableDocs toggles the /api/docs OpenAPI page.
	EnableDocs bool `yaml:"enable_docs"`
}

// WhoisConfig holds WHOIS client settings.
type WhoisConfig struct {
	// Timeout bounds a single WHOIS query.
	Timeout time.Duration `yaml:"timeout"`

	// CacheTTL is how long WHOIS responses are cached. Zero disables
	// expiration.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// DefaultConfig returns a Config with default values.
// Tracing is disabled by default for standalone single-binary operation.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataDir:        DefaultDataDir(),
			UpdateInterval: 24 * time.Hour,
			FetchTimeout:   2 * time.Minute,
			Retry: RetryConfig{
				MaxRetries:     3,
				InitialDelay:   30 * time.Second,
				MaxDelay:       10 * time.Minute,
				Multiplier:     2.0,
				JitterFraction: 0.2,
			},
		},
		HTTP: HTTPConfig{
			Addr: ":6600",
		},
		API: APIConfig{
			DefaultLang:  "en",
			EnableStatus: true,
			EnableDocs:   true,
		},
		Whois: WhoisConfig{
			Timeout:  15 * time.Second,
			CacheTTL: 1 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// GUNTER_* environment overrides on top of the defaults.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides config values from GUNTER_* environment variables.
// These match the variables the original deployment documentation uses.
func (c *Config) applyEnv() {
	if v := os.Getenv("GUNTER_DB_URL"); v != "" {
		c.Database.ExternalURL = v
	}
	if v := os.Getenv("GUNTER_DB_FILE"); v != "" {
		c.Database.LocalFile = v
	}
	if v := os.Getenv("GUNTER_MAXMIND_LICENSE_KEY"); v != "" {
		c.Database.LicenseKey = v
	}
	if v := os.Getenv("GUNTER_DB_DIR"); v != "" {
		c.Database.DataDir = v
	}
	if v := os.Getenv("GUNTER_UPDATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Database.UpdateInterval = d
		}
	}
	if v := os.Getenv("GUNTER_LANG"); v != "" {
		c.API.DefaultLang = strings.ToLower(v)
	}
	if v := os.Getenv("GUNTER_ENABLE_STATUS"); v != "" {
		c.API.EnableStatus = parseBool(v, c.API.EnableStatus)
	}
	if v := os.Getenv("GUNTER_ENABLE_API_DOCS"); v != "" {
		c.API.EnableDocs = parseBool(v, c.API.EnableDocs)
	}
	if v := os.Getenv("GUNTER_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("GUNTER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("GUNTER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks configuration consistency.
// Source availability is not checked here; geodb.ResolveSource decides
// whether a usable source exists.
func (c *Config) Validate() error {
	if c.Database.UpdateInterval <= 0 {
		return fmt.Errorf("database update_interval must be positive, got %v", c.Database.UpdateInterval)
	}
	if c.Database.FetchTimeout <= 0 {
		return fmt.Errorf("database fetch_timeout must be positive, got %v", c.Database.FetchTimeout)
	}
	if c.Database.Retry.JitterFraction < 0 || c.Database.Retry.JitterFraction > 1 {
		return fmt.Errorf("retry jitter_fraction must be between 0 and 1")
	}
	if c.Database.Retry.Multiplier != 0 && c.Database.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}
	return nil
}

// parseBool parses truthy strings, falling back on parse errors.
func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		return fallback
	}
	return b
}

// DefaultDataDir returns the default database directory.
func DefaultDataDir() string {
	// Container deployments mount /data; prefer it when present.
	if info, err := os.Stat("/data"); err == nil && info.IsDir() {
		return "/data"
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "gunter")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/gunter"
	}

	return filepath.Join(home, ".local", "share", "gunter")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gunter", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/gunter/config.yaml"
	}

	return filepath.Join(home, ".config", "gunter", "config.yaml")
}
