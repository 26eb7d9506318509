// ABOUTME: Sensitive data redaction for secure logging
// ABOUTME: Masks license keys, passwords, and tokens in logged URLs

package observability

import (
	"net/url"
	"regexp"
)

// RedactionPlaceholder is the replacement text for redacted values.
const RedactionPlaceholder = "[REDACTED]"

// sensitivePatterns matches credential-bearing query parameters. Values
// stop at whitespace or & so surrounding text survives.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(license_key|licensekey)=[^\s&]+`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)=[^\s&]+`),
	regexp.MustCompile(`(?i)(token|auth_token|access_token)=[^\s&]+`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[^\s&]+`),
}

// RedactString masks sensitive query parameters in a string.
func RedactString(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllString(s, "${1}="+RedactionPlaceholder)
	}
	return s
}

// RedactURL masks credentials embedded in a URL: userinfo as well as
// sensitive query parameters. Unparseable input falls back to string
// redaction.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return RedactString(raw)
	}

	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), RedactionPlaceholder)
		}
	}

	redacted := RedactString(u.String())
	// url.UserPassword escapes the placeholder brackets.
	return regexp.MustCompile(`%5BREDACTED%5D`).ReplaceAllString(redacted, RedactionPlaceholder)
}
