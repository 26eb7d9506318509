// ABOUTME: Error taxonomy for database fetch and lookup readiness
// ABOUTME: FetchError classification and the ErrNotReady sentinel

package geodb

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by the Store before the first successful
// install. Handlers surface it as a retryable service-unavailable
// condition, never a crash.
var ErrNotReady = errors.New("geoip database not ready")

// FetchErrorKind classifies a fetch failure.
type FetchErrorKind string

// Fetch error kinds.
const (
	// FetchTransient covers network errors, timeouts, and 5xx responses.
	// The next scheduled refresh retries.
	FetchTransient FetchErrorKind = "transient"

	// FetchPermanent covers failures that will not heal on their own,
	// such as 4xx responses or an unsupported URL.
	FetchPermanent FetchErrorKind = "permanent"

	// FetchNotFound means a local file path does not exist.
	FetchNotFound FetchErrorKind = "not_found"

	// FetchCorrupt means the downloaded bytes failed to open as an
	// MMDB database. The bytes are discarded and never installed.
	FetchCorrupt FetchErrorKind = "corrupt"
)

// FetchError is a classified database fetch failure.
type FetchError struct {
	// Kind classifies the failure.
	Kind FetchErrorKind

	// Op names the operation that failed (e.g., "http get", "open mmdb").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// fetchErr builds a classified FetchError.
func fetchErr(kind FetchErrorKind, op string, err error) *FetchError {
	return &FetchError{Kind: kind, Op: op, Err: err}
}

// FetchKind extracts the FetchErrorKind from an error chain.
// Unclassified errors report FetchTransient so the scheduler retries.
func FetchKind(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FetchTransient
}
