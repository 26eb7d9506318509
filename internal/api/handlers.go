// ABOUTME: HTTP handlers for the Gunter API endpoints
// ABOUTME: Provides geolocation lookup, WHOIS lookup, status, and documentation

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/needful-apps/Gunter/internal/geodb"
	"github.com/needful-apps/Gunter/internal/geoip"
	"github.com/needful-apps/Gunter/internal/observability"
	"github.com/needful-apps/Gunter/internal/whois"
)

// UpdaterStatusProvider reports the state of the database refresh worker.
type UpdaterStatusProvider interface {
	Status() geodb.Status
}

// WhoisProvider performs WHOIS lookups for IPs and domains.
type WhoisProvider interface {
	Lookup(ctx context.Context, target string) (*whois.Data, error)
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	store        *geodb.Store
	updater      UpdaterStatusProvider
	whois        WhoisProvider
	metrics      *observability.Metrics
	defaultLang  string
	enableStatus bool
	enableDocs   bool
	dataDir      string
	logger       *slog.Logger
}

// HandlerConfig holds configuration for API handlers.
type HandlerConfig struct {
	Store        *geodb.Store
	Updater      UpdaterStatusProvider
	Whois        WhoisProvider
	Metrics      *observability.Metrics
	DefaultLang  string
	EnableStatus bool
	EnableDocs   bool
	DataDir      string
	Logger       *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = "en"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		store:        cfg.Store,
		updater:      cfg.Updater,
		whois:        cfg.Whois,
		metrics:      cfg.Metrics,
		defaultLang:  cfg.DefaultLang,
		enableStatus: cfg.EnableStatus,
		enableDocs:   cfg.EnableDocs,
		dataDir:      cfg.DataDir,
		logger:       cfg.Logger,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/geo-lookup/{ip}", h.HandleGeoLookup)
	mux.HandleFunc("GET /api/whois/{target}", h.HandleWhois)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	if h.enableStatus {
		mux.HandleFunc("GET /api/status", h.HandleStatus)
	}
	if h.enableDocs {
		mux.HandleFunc("GET /api/docs", h.HandleDocs)
		mux.HandleFunc("GET /api/openapi.json", h.HandleOpenAPI)
	}
}

// HandleGeoLookup handles GET /api/geo-lookup/{ip}.
func (h *Handler) HandleGeoLookup(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("ip")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid IP address format.")
		return
	}

	handle, release, err := h.store.Acquire()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "GeoIP database not available. Please try again later.")
		return
	}
	defer release()

	record, err := geoip.Lookup(handle.Reader(), addr)
	if err != nil {
		if errors.Is(err, geoip.ErrNotFound) {
			if h.metrics != nil {
				h.metrics.RecordGeoLookup(false)
			}
			writeError(w, http.StatusNotFound, "IP address not found in database.")
			return
		}
		h.logger.Error("geo lookup failed",
			slog.String("ip", addr.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Lookup failed.")
		return
	}
	if h.metrics != nil {
		h.metrics.RecordGeoLookup(true)
	}

	lang := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang")))
	if lang == "" {
		lang = h.defaultLang
	}
	result, ok := geoip.FilterNames(map[string]any(record), lang, h.defaultLang).(map[string]any)
	if !ok {
		result = map[string]any{}
	}

	result["database_info"] = databaseInfo(handle)

	if !excludeWhois(r) && h.whois != nil {
		data, err := h.whois.Lookup(r.Context(), addr.String())
		if err != nil {
			h.logger.Warn("whois enrichment failed",
				slog.String("ip", addr.String()),
				slog.String("error", err.Error()),
			)
		} else {
			result["whois_data"] = data
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleWhois handles GET /api/whois/{target}.
func (h *Handler) HandleWhois(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.PathValue("target"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if h.whois == nil {
		writeError(w, http.StatusServiceUnavailable, "WHOIS lookups are not enabled.")
		return
	}

	data, err := h.whois.Lookup(r.Context(), target)
	if err != nil {
		h.logger.Error("whois lookup failed",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "WHOIS lookup failed.")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// HandleStatus handles GET /api/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"database_loaded":    h.store.Ready(),
		"database_directory": h.dataDir,
	}

	if handle, err := h.store.Current(); err == nil {
		resp["current_database_file"] = handle.Path
		resp["current_database_version_tag"] = handle.VersionTag
		resp["last_database_update_utc"] = handle.FetchedAt.UTC().Format(time.RFC3339)
		if !handle.BuildTime.IsZero() {
			resp["database_build_utc"] = handle.BuildTime.UTC().Format(time.RFC3339)
		}
	}

	if h.updater != nil {
		resp["updater"] = h.updater.Status()
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"database_ready": h.store.Ready(),
	})
}

// databaseInfo summarizes the active database for lookup responses.
func databaseInfo(handle *geodb.Handle) map[string]any {
	info := map[string]any{
		"last_updated_utc": handle.FetchedAt.UTC().Format(time.RFC3339),
		"version_tag":      handle.VersionTag,
	}
	if !handle.BuildTime.IsZero() {
		info["build_utc"] = handle.BuildTime.UTC().Format(time.RFC3339)
	}
	return info
}

// excludeWhois reports whether the request opted out of WHOIS enrichment.
func excludeWhois(r *http.Request) bool {
	v := strings.ToLower(r.URL.Query().Get("exclude_whois"))
	return v == "true" || v == "1" || v == "yes"
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
