package template

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Source identifies where a template document originated so callers can treat
// on-disk files and remote URLs uniformly.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the supported template origins.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindURL  SourceKind = "url"
)

// fileSource identifies on-disk template documents.
type fileSource struct {
	path string
}

func (s fileSource) Location() string {
	return s.path
}

func (s fileSource) Kind() SourceKind {
	return SourceKindFile
}

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

// urlSource references an HTTP/HTTPS endpoint.
type urlSource struct {
	raw string
}

func (s urlSource) Location() string {
	return s.raw
}

func (s urlSource) Kind() SourceKind {
	return SourceKindURL
}

// SourceFromURL parses the supplied URL string and returns a Source, or an
// error if the value is not an absolute http(s) URL.
func SourceFromURL(raw string) (Source, error) {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, &InvalidSourceError{Value: raw, Reason: err.Error()}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &InvalidSourceError{Value: raw, Reason: "only http and https URLs are supported"}
	}
	if parsed.Host == "" {
		return nil, &InvalidSourceError{Value: raw, Reason: "missing host"}
	}
	return urlSource{raw: raw}, nil
}

// ParseSource classifies a CLI argument as a URL or a file path.
func ParseSource(raw string) (Source, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, &InvalidSourceError{Value: raw, Reason: "empty source"}
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return SourceFromURL(value)
	}
	return SourceFromFile(value), nil
}
