// ABOUTME: Tests for API handlers using httptest and stubbed providers
// ABOUTME: Covers error paths, status reporting, and route toggles

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/needful-apps/Gunter/internal/geodb"
	"github.com/needful-apps/Gunter/internal/observability"
	"github.com/needful-apps/Gunter/internal/whois"
)

type stubWhois struct {
	data *whois.Data
	err  error

	lastTarget string
}

func (s *stubWhois) Lookup(ctx context.Context, target string) (*whois.Data, error) {
	s.lastTarget = target
	return s.data, s.err
}

type stubUpdater struct {
	status geodb.Status
}

func (s *stubUpdater) Status() geodb.Status {
	return s.status
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestMux(t *testing.T, cfg HandlerConfig) *http.ServeMux {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = geodb.NewStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	return mux
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestGeoLookupInvalidIP(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, HandlerConfig{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/geo-lookup/not-an-ip", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	body := decodeBody(t, rr)
	if body["error"] != "Invalid IP address format." {
		t.Errorf("error = %q", body["error"])
	}
}

func TestGeoLookupDatabaseNotReady(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, HandlerConfig{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/geo-lookup/8.8.8.8", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestWhoisLookup(t *testing.T) {
	t.Parallel()

	stub := &stubWhois{data: &whois.Data{Target: "example.com"}}
	mux := newTestMux(t, HandlerConfig{Whois: stub})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/whois/example.com", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastTarget != "example.com" {
		t.Errorf("lastTarget = %q", stub.lastTarget)
	}
	body := decodeBody(t, rr)
	if body["target"] != "example.com" {
		t.Errorf("target = %q", body["target"])
	}
}

func TestWhoisLookupDisabled(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, HandlerConfig{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/whois/example.com", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestStatusRouteDisabled(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, HandlerConfig{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStatusReportsDatabase(t *testing.T) {
	t.Parallel()

	store := geodb.NewStore()
	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Install(&geodb.Handle{
		SourceKind: geodb.SourceManagedProvider,
		Path:       "/data/GeoLite2-City-20250601.mmdb",
		FetchedAt:  fetched,
		VersionTag: "GeoLite2-City/2025-06-01",
	})

	updater := &stubUpdater{status: geodb.Status{State: geodb.StateIdle}}
	metrics := observability.NewMetrics()
	metrics.RecordGeoLookup(true)

	mux := newTestMux(t, HandlerConfig{
		Store:        store,
		Updater:      updater,
		Metrics:      metrics,
		EnableStatus: true,
		DataDir:      "/data",
	})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeBody(t, rr)
	if body["database_loaded"] != true {
		t.Error("database_loaded = false, want true")
	}
	if body["current_database_version_tag"] != "GeoLite2-City/2025-06-01" {
		t.Errorf("version tag = %q", body["current_database_version_tag"])
	}
	if body["last_database_update_utc"] != fetched.Format(time.RFC3339) {
		t.Errorf("last update = %q", body["last_database_update_utc"])
	}
	if _, ok := body["updater"]; !ok {
		t.Error("missing updater section")
	}
	if _, ok := body["metrics"]; !ok {
		t.Error("missing metrics section")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, HandlerConfig{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
	if body["database_ready"] != false {
		t.Error("database_ready = true, want false")
	}
}

func TestDocsToggle(t *testing.T) {
	t.Parallel()

	enabled := newTestMux(t, HandlerConfig{EnableDocs: true})
	rr := httptest.NewRecorder()
	enabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("openapi status = %d, want %d", rr.Code, http.StatusOK)
	}
	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi document is not valid JSON: %v", err)
	}

	rr = httptest.NewRecorder()
	enabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("docs status = %d, want %d", rr.Code, http.StatusOK)
	}

	disabled := newTestMux(t, HandlerConfig{})
	rr = httptest.NewRecorder()
	disabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("disabled docs status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestExcludeWhois(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"exclude_whois=true", true},
		{"exclude_whois=TRUE", true},
		{"exclude_whois=1", true},
		{"exclude_whois=yes", true},
		{"exclude_whois=false", false},
		{"exclude_whois=0", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/geo-lookup/8.8.8.8?"+tc.query, nil)
		if got := excludeWhois(r); got != tc.want {
			t.Errorf("excludeWhois(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestLoggingMiddlewarePreservesStatus(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := LoggingMiddleware(quietLogger())(inner)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/anything", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}
