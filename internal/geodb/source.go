// ABOUTME: Database source resolution from configuration
// ABOUTME: Closed variant over external URL, local file, and managed provider

package geodb

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/needful-apps/Gunter/internal/config"
)

// ErrNoSource indicates that no database source is configured.
// This is fatal at startup: the service must not silently serve empty data.
var ErrNoSource = errors.New("no database source configured: set GUNTER_DB_URL, GUNTER_DB_FILE, or GUNTER_MAXMIND_LICENSE_KEY")

// SourceKind identifies where the database comes from.
type SourceKind string

// Source kinds, in priority order.
const (
	SourceExternalURL     SourceKind = "external_url"
	SourceLocalFile       SourceKind = "local_file"
	SourceManagedProvider SourceKind = "managed_provider"
)

// Source describes the single active database source for this process.
// It is resolved once from configuration and never re-decided downstream.
type Source struct {
	// Kind selects which of the remaining fields is meaningful.
	Kind SourceKind

	// URL is the download URL for SourceExternalURL.
	URL string

	// Path is the file path for SourceLocalFile.
	Path string

	// LicenseKey is the MaxMind license key for SourceManagedProvider.
	LicenseKey string
}

// AutoUpdates reports whether the scheduler should re-fetch this source
// on timer ticks. A local file has no remote freshness signal and is
// loaded at startup only.
func (s Source) AutoUpdates() bool {
	return s.Kind != SourceLocalFile
}

// ResolveSource decides the active database source from configuration.
// Priority is strict: external URL, then local file, then managed
// provider. Returns ErrNoSource when none is configured.
//
// Pure function of the configuration; performs no I/O.
func ResolveSource(cfg config.DatabaseConfig) (Source, error) {
	switch {
	case cfg.ExternalURL != "":
		u, err := url.Parse(cfg.ExternalURL)
		if err != nil {
			return Source{}, fmt.Errorf("invalid external database URL: %w", err)
		}
		switch u.Scheme {
		case "http", "https", "ftp", "ftps":
		default:
			return Source{}, fmt.Errorf("unsupported external database URL scheme %q", u.Scheme)
		}
		return Source{Kind: SourceExternalURL, URL: cfg.ExternalURL}, nil

	case cfg.LocalFile != "":
		return Source{Kind: SourceLocalFile, Path: cfg.LocalFile}, nil

	case cfg.LicenseKey != "":
		return Source{Kind: SourceManagedProvider, LicenseKey: cfg.LicenseKey}, nil

	default:
		return Source{}, ErrNoSource
	}
}
