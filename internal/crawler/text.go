package crawler

import (
	"net/url"
	"strings"
)

// CleanText collapses every run of whitespace (including non-breaking spaces)
// into a single space and trims the ends.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// ResolveLink returns href as an absolute URL resolved against base.
// It returns "" when href is empty, unparsable or cannot be made absolute.
func ResolveLink(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() || ref.Host == "" {
		return ""
	}
	return ref.String()
}

// ParseBase parses the first non-empty candidate as an absolute base URL.
func ParseBase(candidates ...string) *url.URL {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		u, err := url.Parse(c)
		if err == nil && u.IsAbs() {
			return u
		}
	}
	return nil
}
