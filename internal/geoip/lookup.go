// ABOUTME: Thin GeoIP record lookup over an opened MMDB reader
// ABOUTME: Decodes raw records and localizes their names maps

package geoip

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// ErrNotFound indicates the address has no record in the database.
var ErrNotFound = errors.New("address not found in database")

// Record is a raw decoded MMDB record. Shapes vary between database
// editions, so records stay untyped and are filtered generically.
type Record map[string]any

// Lookup decodes the record for an address from the given reader.
// The caller must hold a pinned database handle for the duration.
func Lookup(reader *maxminddb.Reader, addr netip.Addr) (Record, error) {
	result := reader.Lookup(addr)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("mmdb lookup: %w", err)
	}
	if !result.Found() {
		return nil, ErrNotFound
	}

	var rec Record
	if err := result.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if len(rec) == 0 {
		return nil, ErrNotFound
	}
	return rec, nil
}

// FilterNames walks a decoded record and collapses every "names"
// map into a single "name" field for the requested language. The
// fallback language is used when the requested one is missing; any
// remaining translation wins over dropping the name entirely.
func FilterNames(v any, lang, fallback string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if k == "names" {
				if names, ok := child.(map[string]any); ok {
					if name := pickName(names, lang, fallback); name != nil {
						out["name"] = name
					}
					continue
				}
			}
			out[k] = FilterNames(child, lang, fallback)
		}
		return out

	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = FilterNames(item, lang, fallback)
		}
		return out

	default:
		return v
	}
}

// pickName selects a translation: requested language, then fallback,
// then any available one.
func pickName(names map[string]any, lang, fallback string) any {
	if name, ok := names[lang]; ok && name != "" {
		return name
	}
	if name, ok := names[fallback]; ok && name != "" {
		return name
	}
	for _, name := range names {
		if name != "" {
			return name
		}
	}
	return nil
}
