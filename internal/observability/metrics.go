// ABOUTME: Service metrics collection for observability
// ABOUTME: Atomic counters for lookups, WHOIS queries, and database refreshes

package observability

import (
	"sync/atomic"
	"time"
)

// MetricsSnapshot contains a point-in-time snapshot of all metrics.
type MetricsSnapshot struct {
	// Geo lookups attempted.
	GeoLookups int64 `json:"geo_lookups"`

	// Geo lookups with no record in the database.
	GeoNotFound int64 `json:"geo_not_found"`

	// WHOIS lookups attempted.
	WhoisLookups int64 `json:"whois_lookups"`

	// WHOIS lookups answered from the cache.
	WhoisCacheHits int64 `json:"whois_cache_hits"`

	// Database refresh outcomes.
	RefreshSuccess int64 `json:"refresh_success"`
	RefreshFailure int64 `json:"refresh_failure"`

	// When the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// Metrics collects service counters. All methods are safe for
// concurrent use.
type Metrics struct {
	geoLookups     atomic.Int64
	geoNotFound    atomic.Int64
	whoisLookups   atomic.Int64
	whoisCacheHits atomic.Int64
	refreshSuccess atomic.Int64
	refreshFailure atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordGeoLookup records a geo lookup attempt.
func (m *Metrics) RecordGeoLookup(found bool) {
	m.geoLookups.Add(1)
	if !found {
		m.geoNotFound.Add(1)
	}
}

// RecordWhoisLookup records a WHOIS lookup attempt.
func (m *Metrics) RecordWhoisLookup(cacheHit bool) {
	m.whoisLookups.Add(1)
	if cacheHit {
		m.whoisCacheHits.Add(1)
	}
}

// RecordRefresh records a database refresh outcome.
func (m *Metrics) RecordRefresh(success bool) {
	if success {
		m.refreshSuccess.Add(1)
	} else {
		m.refreshFailure.Add(1)
	}
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		GeoLookups:     m.geoLookups.Load(),
		GeoNotFound:    m.geoNotFound.Load(),
		WhoisLookups:   m.whoisLookups.Load(),
		WhoisCacheHits: m.whoisCacheHits.Load(),
		RefreshSuccess: m.refreshSuccess.Load(),
		RefreshFailure: m.refreshFailure.Load(),
		Timestamp:      time.Now().UTC(),
	}
}
