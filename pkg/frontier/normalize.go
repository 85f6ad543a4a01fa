// Package frontier canonicalizes, filters and orders URLs discovered during a crawl.
package frontier

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrMissingHost       = errors.New("missing host")
)

// Normalize returns the canonical form of rawURL. Relative references are
// resolved against base when base is non-nil.
//
// The result has a lower-case scheme and host, no default port, no fragment,
// sorted query parameters and no trailing slash except for the root path.
// Normalize(Normalize(u)) == Normalize(u).
func Normalize(rawURL string, base *url.URL) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrMissingHost
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	// work on the escaped path so reserved escapes such as %2F survive
	path := u.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	if p, err := url.PathUnescape(path); err == nil {
		u.Path, u.RawPath = p, path
	}

	u.ForceQuery = false
	if u.RawQuery != "" {
		// a query that does not parse cleanly, e.g. with ';' separators, is kept as is
		if params, err := url.ParseQuery(u.RawQuery); err == nil {
			u.RawQuery = sortedQuery(params)
		}
	}

	return u.String(), nil
}

// sortedQuery re-encodes params with keys and values in a stable order.
func sortedQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// Domain returns the lower-case host of a URL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// SameSite reports whether two URLs share a domain, ignoring "www.".
func SameSite(a, b string) bool {
	da, db := Domain(a), Domain(b)
	return da != "" && da == db
}

// PathSegments counts the non-empty path segments of a URL.
func PathSegments(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	n := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}
