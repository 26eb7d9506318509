// ABOUTME: Database handle wrapping an opened MMDB reader with metadata
// ABOUTME: Reference counting defers close until in-flight lookups finish

package geodb

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang/v2"
)

// Handle is an opened, queryable database artifact. Exactly one handle
// is active at a time; a superseded handle is closed, and its file
// removed when owned, once the last lookup releases it.
type Handle struct {
	// SourceKind records which source produced this handle.
	SourceKind SourceKind

	// Origin is the URL or path the artifact came from, with
	// credentials redacted.
	Origin string

	// Path is the on-disk location of the artifact.
	Path string

	// FetchedAt is when the artifact was fetched.
	FetchedAt time.Time

	// BuildTime is the database build time from MMDB metadata.
	BuildTime time.Time

	// VersionTag identifies the database build (type plus build date).
	VersionTag string

	reader *maxminddb.Reader

	// owned marks artifacts the downloader wrote into the data dir,
	// as opposed to user-supplied local files.
	owned bool

	mu      sync.Mutex
	refs    int
	retired bool
}

// Reader returns the underlying MMDB reader for lookups. The caller
// must hold a reference obtained through Store.Acquire.
func (h *Handle) Reader() *maxminddb.Reader {
	return h.reader
}

// acquire pins the handle against closing.
func (h *Handle) acquire() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

// release drops a pin. The last release of a retired handle closes it.
func (h *Handle) release() {
	h.mu.Lock()
	h.refs--
	done := h.retired && h.refs == 0
	h.mu.Unlock()

	if done {
		h.dispose()
	}
}

// retire marks the handle as superseded. It is closed immediately when
// no lookup holds it, otherwise by the final release.
func (h *Handle) retire() {
	h.mu.Lock()
	if h.retired {
		h.mu.Unlock()
		return
	}
	h.retired = true
	done := h.refs == 0
	h.mu.Unlock()

	if done {
		h.dispose()
	}
}

// dispose closes the reader and removes owned artifacts from disk.
func (h *Handle) dispose() {
	if h.reader != nil {
		if err := h.reader.Close(); err != nil {
			slog.Warn("closing superseded database reader", slog.String("path", h.Path), slog.String("error", err.Error()))
		}
	}
	if h.owned && h.Path != "" {
		if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("removing superseded database file", slog.String("path", h.Path), slog.String("error", err.Error()))
		}
	}
}
