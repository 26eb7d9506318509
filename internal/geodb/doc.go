// ABOUTME: Package documentation for the geodb database provisioning subsystem
// ABOUTME: Explains sources, refresh lifecycle, and concurrency guarantees

/*
Package geodb provisions and refreshes the GeoIP database that the lookup
path reads from.

A database comes from exactly one source, resolved once from configuration
with strict priority: an external URL beats a local file, which beats the
managed MaxMind provider. See ResolveSource.

The Downloader fetches the database artifact (http, https, ftp, ftps, local
path, or the provider's tar.gz archive), writes it into the data directory,
and validates it by opening it as an MMDB file. Artifacts that fail to open
are removed and never installed.

The Store holds the active Handle. Current never blocks and returns
ErrNotReady before the first install. Acquire pins a handle for the duration
of a lookup; a superseded handle is closed and its file removed only after
the last lookup releases it.

The Updater runs one refresh at startup and then on a fixed interval,
single-flight. A failed refresh leaves the previously active handle in
place. Local file sources are loaded at startup only; timer ticks record a
skipped outcome for them because a static path has no freshness signal.

A corrupt or failed download is retried within the same refresh attempt
using bounded exponential backoff, then the updater waits for the next
scheduled tick.
*/
package geodb
