package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FetchOptions controls how remote templates are retrieved.
type FetchOptions struct {
	// AllowHTTP permits plain http:// URLs. Defaults to false; https only.
	AllowHTTP bool
	// Timeout bounds the whole request. Zero means no explicit deadline.
	Timeout time.Duration
	// MaxSize caps the response body in bytes. Zero means no cap.
	MaxSize int64
	// Client overrides the HTTP client used for the request.
	Client *http.Client
}

// Fetch downloads a remote template document. It refuses plain-HTTP sources
// unless explicitly allowed and validates that the payload is JSON before
// returning it.
func Fetch(ctx context.Context, src Source, opts FetchOptions) (Document, error) {
	if src == nil {
		return Document{}, errors.New("template: source is nil")
	}
	if src.Kind() != SourceKindURL {
		return Document{}, errors.New("template: fetch requires a URL source")
	}

	location := src.Location()
	if strings.HasPrefix(strings.ToLower(location), "http://") && !opts.AllowHTTP {
		return Document{}, &InvalidSourceError{Value: location, Reason: "http URLs are not allowed, use https or enable allow-http"}
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, location, nil)
	if err != nil {
		return Document{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("template: fetch %s: %w", location, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("template: fetch %s: unexpected status %s", location, resp.Status)
	}

	var body io.Reader = resp.Body
	if opts.MaxSize > 0 {
		body = io.LimitReader(resp.Body, opts.MaxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Document{}, fmt.Errorf("template: fetch %s: %w", location, err)
	}
	if opts.MaxSize > 0 && int64(len(data)) > opts.MaxSize {
		return Document{}, fmt.Errorf("template: fetch %s: response exceeds %d bytes", location, opts.MaxSize)
	}

	return NewDocument(src, data)
}

// Read loads a template document from a file source.
func Read(src Source) (Document, error) {
	if src == nil {
		return Document{}, errors.New("template: source is nil")
	}
	if src.Kind() != SourceKindFile {
		return Document{}, errors.New("template: read requires a file source")
	}
	data, err := readFile(src.Location())
	if err != nil {
		return Document{}, err
	}
	return NewDocument(src, data)
}
