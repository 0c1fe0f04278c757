package allowlist

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalises a schema URL so that equivalent spellings map to
// the same store key: scheme and host are case-folded, default ports are
// stripped, and a trailing slash on the path is removed.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()

	switch {
	case scheme == "https" && port == "443":
		port = ""
	case scheme == "http" && port == "80":
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}

	path := parsed.Path
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	normalized := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     path,
		RawQuery: parsed.RawQuery,
	}
	return normalized.String(), nil
}
