// Package security implements the input sanitizer and the
// connection-level authentication gate.
package security

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/browsergate/gateway/internal/gatewayerr"
)

// injectionPattern names one class of rejected script-injection pattern.
type injectionPattern struct {
	category string
	re       *regexp.Regexp
}

// patterns covers inline event-handler attributes, <script> tags,
// javascript: pseudo-scheme, data:text/html with embedded script, and
// CSS expression() constructs.
var patterns = []injectionPattern{
	{"event-handler-attribute", regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)},
	{"script-tag", regexp.MustCompile(`(?i)<\s*script\b`)},
	{"javascript-scheme", regexp.MustCompile(`(?i)\bjavascript\s*:`)},
	{"data-html-script", regexp.MustCompile(`(?i)data:text/html[^,]*,.*<\s*script`)},
	{"css-expression", regexp.MustCompile(`(?i)expression\s*\(`)},
}

// Sanitizer applies the rejection rules to free-form string fields. The
// dispatch handler runs it after the command has been decoded and
// schema-validated, so a frame that fails validation is reported as an
// invalid command even if it also carries an injection pattern.
type Sanitizer struct {
	allowNonHTTPURLs bool
}

// NewSanitizer builds a Sanitizer. allowNonHTTPURLs mirrors the
// allow_non_http_urls configuration knob.
func NewSanitizer(allowNonHTTPURLs bool) *Sanitizer {
	return &Sanitizer{allowNonHTTPURLs: allowNonHTTPURLs}
}

// CheckText rejects any value containing a known injection pattern. On
// rejection it returns a typed UnsafeInput error carrying only the pattern
// category — never the offending substring.
func (s *Sanitizer) CheckText(value string) error {
	for _, p := range patterns {
		if p.re.MatchString(value) {
			return gatewayerr.NewUnsafeInput(p.category)
		}
	}
	return nil
}

// NormalizeURL validates and normalizes a URL field. Only http/https are
// accepted unless allowNonHTTPURLs is set; the sanitizer's text checks are
// applied first since a URL can itself smuggle an injection pattern (e.g.
// a javascript: scheme).
func (s *Sanitizer) NormalizeURL(raw string) (string, error) {
	if err := s.CheckText(raw); err != nil {
		return "", err
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", gatewayerr.NewUnsafeInput("malformed-url")
	}

	scheme := strings.ToLower(u.Scheme)
	if !s.allowNonHTTPURLs && scheme != "http" && scheme != "https" {
		return "", gatewayerr.NewUnsafeInput("disallowed-scheme")
	}

	return u.String(), nil
}

// CheckSelector applies the sanitizer's text checks to a CSS selector
// field. Selectors are a common injection vector when they embed attribute
// value syntax (e.g. `a[onclick=alert(1)]`).
func (s *Sanitizer) CheckSelector(selector string) error {
	return s.CheckText(selector)
}
