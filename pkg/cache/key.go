package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// Key identifies an entry inside a partition. Entries are keyed by the
// normalized absolute URL of a GET request.
type Key struct {
	URL *url.URL
}

// KeyFromString parses raw into a Key. Relative references are resolved
// against base; base may be nil when raw is absolute.
func KeyFromString(raw string, base *url.URL) (Key, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Key{}, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if !u.IsAbs() {
		if base == nil {
			return Key{}, fmt.Errorf("relative url %q without base", raw)
		}
		u = base.ResolveReference(u)
	}
	return Key{URL: u}, nil
}

// String generates a deterministic key string.
// Format: scheme://host/path?sorted-query (fragment dropped)
//
// Example:
//
//	https://cdn.example.com/lib.js?a=1&b=2
func (k Key) String() string {
	if k.URL == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(k.URL.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(k.URL.Host))

	path := k.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(path)

	// url.Values.Encode sorts by key
	if k.URL.RawQuery != "" {
		if q, err := url.ParseQuery(k.URL.RawQuery); err == nil {
			b.WriteString("?")
			b.WriteString(q.Encode())
		} else {
			b.WriteString("?")
			b.WriteString(k.URL.RawQuery)
		}
	}

	return b.String()
}
