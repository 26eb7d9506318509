// ABOUTME: Database artifact fetching over http(s), ftp(s), provider, and local paths
// ABOUTME: Validates downloads as MMDB before they can ever become active

package geodb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/oschwald/maxminddb-golang/v2"

	"github.com/needful-apps/Gunter/internal/observability"
)

// defaultProviderEndpoint is the official MaxMind GeoLite2 download URL.
const defaultProviderEndpoint = "https://download.maxmind.com/app/geoip_download"

// providerEdition is the database edition fetched from the managed provider.
const providerEdition = "GeoLite2-City"

// DownloaderConfig holds configuration for the artifact downloader.
type DownloaderConfig struct {
	// DataDir is where downloaded artifacts are written.
	DataDir string

	// Timeout bounds a single network fetch.
	Timeout time.Duration

	// UserAgent for HTTP requests.
	UserAgent string

	// MaxSize limits the maximum download size in bytes (0 = unlimited).
	MaxSize int64

	// ProviderEndpoint overrides the managed provider download URL.
	// Empty uses the official MaxMind endpoint.
	ProviderEndpoint string

	// Logger for structured logging.
	Logger *slog.Logger
}

// Downloader fetches database artifacts and turns them into validated
// handles. It owns the files it writes into the data directory.
type Downloader struct {
	cfg    DownloaderConfig
	client *http.Client
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewDownloader creates a downloader with defaults applied.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "gunter/1.0"
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 512 * 1024 * 1024
	}
	if cfg.ProviderEndpoint == "" {
		cfg.ProviderEndpoint = defaultProviderEndpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Downloader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// Fetch retrieves the database artifact for the given source and
// returns a validated, openable handle. A corrupt artifact is removed
// and reported as FetchCorrupt; it can never become active.
func (d *Downloader) Fetch(ctx context.Context, src Source) (*Handle, error) {
	switch src.Kind {
	case SourceLocalFile:
		return d.fetchLocal(src)
	case SourceExternalURL:
		return d.fetchExternal(ctx, src)
	case SourceManagedProvider:
		return d.fetchProvider(ctx, src)
	default:
		return nil, fetchErr(FetchPermanent, "fetch", fmt.Errorf("unknown source kind %q", src.Kind))
	}
}

// fetchLocal opens a user-supplied MMDB file in place. The file is not
// copied and never removed by the store.
func (d *Downloader) fetchLocal(src Source) (*Handle, error) {
	if _, err := os.Stat(src.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, fetchErr(FetchNotFound, "stat local file", err)
		}
		return nil, fetchErr(FetchTransient, "stat local file", err)
	}

	h, err := d.openHandle(src.Path, src.Kind, src.Path, false)
	if err != nil {
		return nil, err
	}

	d.logger.Info("loaded custom database file", slog.String("path", src.Path))
	return h, nil
}

// fetchExternal downloads a raw MMDB file from an http(s) or ftp(s) URL.
func (d *Downloader) fetchExternal(ctx context.Context, src Source) (*Handle, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fetchErr(FetchPermanent, "parse url", err)
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		data, err = d.httpGet(ctx, src.URL)
	case "ftp", "ftps":
		data, err = d.ftpGet(ctx, u)
	default:
		return nil, fetchErr(FetchPermanent, "fetch", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(u.Path)
	if ext == "" {
		ext = ".mmdb"
	}
	name := fmt.Sprintf("external-%s%s", d.now().UTC().Format("20060102150405"), ext)

	origin := observability.RedactURL(src.URL)
	return d.installArtifact(data, name, src.Kind, origin)
}

// fetchProvider downloads the GeoLite2-City tar.gz archive from the
// managed provider and extracts its MMDB member.
func (d *Downloader) fetchProvider(ctx context.Context, src Source) (*Handle, error) {
	q := url.Values{}
	q.Set("edition_id", providerEdition)
	q.Set("license_key", src.LicenseKey)
	q.Set("suffix", "tar.gz")
	downloadURL := d.cfg.ProviderEndpoint + "?" + q.Encode()

	archive, err := d.httpGet(ctx, downloadURL)
	if err != nil {
		return nil, err
	}

	data, err := extractMMDB(archive)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s-%s.mmdb", providerEdition, d.now().UTC().Format("20060102150405"))
	origin := observability.RedactURL(downloadURL)
	return d.installArtifact(data, name, src.Kind, origin)
}

// installArtifact writes downloaded bytes into the data directory and
// validates them by opening the result as an MMDB database. Files that
// fail to open are removed.
func (d *Downloader) installArtifact(data []byte, name string, kind SourceKind, origin string) (*Handle, error) {
	if err := os.MkdirAll(d.cfg.DataDir, 0o755); err != nil {
		return nil, fetchErr(FetchTransient, "create data dir", err)
	}

	path := filepath.Join(d.cfg.DataDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fetchErr(FetchTransient, "write artifact", err)
	}

	h, err := d.openHandle(path, kind, origin, true)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			d.logger.Warn("removing corrupt database file", slog.String("path", path), slog.String("error", rmErr.Error()))
		} else {
			d.logger.Info("removed corrupt database file", slog.String("path", path))
		}
		return nil, err
	}

	d.logger.Info("database artifact downloaded",
		slog.String("path", path),
		slog.String("origin", origin),
		slog.String("version", h.VersionTag),
	)
	return h, nil
}

// openHandle opens and validates an artifact as an MMDB database.
func (d *Downloader) openHandle(path string, kind SourceKind, origin string, owned bool) (*Handle, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fetchErr(FetchCorrupt, "open mmdb", err)
	}

	meta := reader.Metadata
	build := time.Unix(int64(meta.BuildEpoch), 0).UTC()

	return &Handle{
		SourceKind: kind,
		Origin:     origin,
		Path:       path,
		FetchedAt:  d.now().UTC(),
		BuildTime:  build,
		VersionTag: fmt.Sprintf("%s/%s", meta.DatabaseType, build.Format("2006-01-02")),
		reader:     reader,
		owned:      owned,
	}, nil
}

// LoadCached opens the newest artifact already present in the data
// directory, if any. Used at startup so a prior download keeps serving
// until the first refresh succeeds.
func (d *Downloader) LoadCached(src Source) (*Handle, bool) {
	matches, err := filepath.Glob(filepath.Join(d.cfg.DataDir, "*.mmdb"))
	if err != nil || len(matches) == 0 {
		return nil, false
	}

	var newest string
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, false
	}

	h, err := d.openHandle(newest, src.Kind, newest, true)
	if err != nil {
		return nil, false
	}
	h.FetchedAt = newestMod.UTC()

	d.logger.Info("loaded cached database artifact", slog.String("path", newest), slog.String("version", h.VersionTag))
	return h, true
}

// Prune removes database artifacts left over from earlier runs,
// keeping the given paths. Artifacts superseded while the process
// runs are removed by the store instead.
func (d *Downloader) Prune(keep ...string) {
	matches, err := filepath.Glob(filepath.Join(d.cfg.DataDir, "*.mmdb"))
	if err != nil {
		return
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}

	for _, m := range matches {
		if kept[m] {
			continue
		}
		if err := os.Remove(m); err != nil {
			d.logger.Warn("removing stale database artifact", slog.String("path", m), slog.String("error", err.Error()))
			continue
		}
		d.logger.Info("removed stale database artifact", slog.String("path", m))
	}
}

// httpGet retrieves a URL, classifying transport errors and non-2xx
// statuses.
func (d *Downloader) httpGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fetchErr(FetchPermanent, "build request", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fetchErr(FetchTransient, "http get", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500:
		return nil, fetchErr(FetchTransient, "http get", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, fetchErr(FetchPermanent, "http get", fmt.Errorf("status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body
	if d.cfg.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, d.cfg.MaxSize)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fetchErr(FetchTransient, "read response", err)
	}
	return data, nil
}

// ftpGet retrieves a file over ftp or ftps (explicit TLS). Anonymous
// login is used unless the URL carries credentials.
func (d *Downloader) ftpGet(ctx context.Context, u *url.URL) ([]byte, error) {
	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":21"
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(d.cfg.Timeout),
	}
	if u.Scheme == "ftps" {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: u.Hostname()}))
	}

	conn, err := ftp.Dial(host, opts...)
	if err != nil {
		return nil, fetchErr(FetchTransient, "ftp dial", err)
	}
	defer conn.Quit()

	user := "anonymous"
	pass := ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, fetchErr(FetchPermanent, "ftp login", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, fetchErr(FetchTransient, "ftp retr", err)
	}
	defer resp.Close()

	var reader io.Reader = resp
	if d.cfg.MaxSize > 0 {
		reader = io.LimitReader(resp, d.cfg.MaxSize)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fetchErr(FetchTransient, "ftp read", err)
	}
	return data, nil
}

// extractMMDB pulls the first .mmdb member out of a gzipped tar
// archive, as shipped by the managed provider.
func extractMMDB(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fetchErr(FetchCorrupt, "gunzip archive", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fetchErr(FetchCorrupt, "read archive", err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".mmdb") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fetchErr(FetchCorrupt, "extract mmdb member", err)
		}
		return data, nil
	}

	return nil, fetchErr(FetchCorrupt, "extract mmdb member", fmt.Errorf("no .mmdb file in archive"))
}
