// ABOUTME: Tests for record name localization
// ABOUTME: Validates language selection, fallback, and recursion

package geoip

import (
	"reflect"
	"testing"
)

func TestFilterNames_SelectsRequestedLanguage(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"city": map[string]any{
			"geoname_id": 2950159,
			"names": map[string]any{
				"de": "Berlin",
				"en": "Berlin",
				"ja": "ベルリン",
			},
		},
	}

	got := FilterNames(rec, "ja", "en").(map[string]any)
	city := got["city"].(map[string]any)

	if city["name"] != "ベルリン" {
		t.Errorf("name = %v, want ベルリン", city["name"])
	}
	if _, ok := city["names"]; ok {
		t.Error("names map should be collapsed")
	}
	if city["geoname_id"] != 2950159 {
		t.Error("sibling fields must be preserved")
	}
}

func TestFilterNames_FallbackLanguage(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"country": map[string]any{
			"names": map[string]any{"en": "Germany", "fr": "Allemagne"},
		},
	}

	got := FilterNames(rec, "xx", "en").(map[string]any)
	country := got["country"].(map[string]any)

	if country["name"] != "Germany" {
		t.Errorf("name = %v, want fallback Germany", country["name"])
	}
}

func TestFilterNames_AnyLanguageBeatsNone(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"continent": map[string]any{
			"names": map[string]any{"pt-BR": "Europa"},
		},
	}

	got := FilterNames(rec, "de", "en").(map[string]any)
	continent := got["continent"].(map[string]any)

	if continent["name"] != "Europa" {
		t.Errorf("name = %v, want any remaining translation", continent["name"])
	}
}

func TestFilterNames_RecursesIntoLists(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"subdivisions": []any{
			map[string]any{"names": map[string]any{"en": "Land Berlin", "de": "Berlin"}},
		},
	}

	got := FilterNames(rec, "de", "en").(map[string]any)
	subs := got["subdivisions"].([]any)
	first := subs[0].(map[string]any)

	if first["name"] != "Berlin" {
		t.Errorf("name = %v, want Berlin", first["name"])
	}
}

func TestFilterNames_PassthroughScalars(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"location": map[string]any{
			"latitude":  52.52,
			"longitude": 13.405,
			"time_zone": "Europe/Berlin",
		},
	}

	got := FilterNames(rec, "de", "en")
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("records without names maps must pass through unchanged: %v", got)
	}
}

func TestFilterNames_NonMapNames(t *testing.T) {
	t.Parallel()

	// A field literally called "names" that is not a map keeps its value.
	rec := map[string]any{"names": "just a string"}

	got := FilterNames(rec, "de", "en").(map[string]any)
	if got["names"] != "just a string" {
		t.Errorf("non-map names field should be untouched, got %v", got)
	}
}
