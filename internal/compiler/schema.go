package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ResolveFunc is the trust callback invoked before any remote schema fetch.
// A nil error means the fetch may proceed; the callback must return a
// terminal answer, never an unresolved "ask".
type ResolveFunc func(ctx context.Context, url string) error

// FetchRecord captures one gate consultation for reporting.
type FetchRecord struct {
	URL     string `json:"url"`
	Allowed bool   `json:"allowed"`
	Detail  string `json:"detail,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
}

// schemaGate wraps every remote schema retrieval: it consults the resolver
// first, enforces transport limits, and caches payloads across compilations
// within the process (watch mode reruns reuse them).
type schemaGate struct {
	resolve ResolveFunc
	client  *http.Client
	timeout time.Duration
	maxSize int64

	mu        sync.Mutex
	cache     map[string][]byte
	useCache  bool
	records   []FetchRecord
	firstDeny error
}

func newSchemaGate(resolve ResolveFunc, client *http.Client, timeout time.Duration, maxSize int64, useCache bool) *schemaGate {
	if client == nil {
		client = http.DefaultClient
	}
	return &schemaGate{
		resolve:  resolve,
		client:   client,
		timeout:  timeout,
		maxSize:  maxSize,
		cache:    make(map[string][]byte),
		useCache: useCache,
	}
}

// loadURL satisfies the schema compiler's URL-loading hook for one
// compilation run. The hook has no context parameter, so the run's context
// is captured here.
func (g *schemaGate) loadURL(ctx context.Context) func(url string) (io.ReadCloser, error) {
	return func(url string) (io.ReadCloser, error) {
		data, err := g.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func (g *schemaGate) fetch(ctx context.Context, url string) ([]byte, error) {
	if g.resolve != nil {
		if err := g.resolve(ctx, url); err != nil {
			g.record(FetchRecord{URL: url, Allowed: false, Detail: err.Error()})
			g.noteDenial(err)
			return nil, err
		}
	}

	if g.useCache {
		g.mu.Lock()
		cached, ok := g.cache[url]
		g.mu.Unlock()
		if ok {
			g.record(FetchRecord{URL: url, Allowed: true, Cached: true})
			return cached, nil
		}
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if g.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("compiler: fetch schema %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("compiler: fetch schema %s: unexpected status %s", url, resp.Status)
	}

	var body io.Reader = resp.Body
	if g.maxSize > 0 {
		body = io.LimitReader(resp.Body, g.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("compiler: fetch schema %s: %w", url, err)
	}
	if g.maxSize > 0 && int64(len(data)) > g.maxSize {
		return nil, fmt.Errorf("compiler: schema %s exceeds %d bytes", url, g.maxSize)
	}

	if g.useCache {
		g.mu.Lock()
		g.cache[url] = data
		g.mu.Unlock()
	}
	g.record(FetchRecord{URL: url, Allowed: true})
	return data, nil
}

func (g *schemaGate) record(r FetchRecord) {
	g.mu.Lock()
	g.records = append(g.records, r)
	g.mu.Unlock()
}

func (g *schemaGate) noteDenial(err error) {
	g.mu.Lock()
	if g.firstDeny == nil {
		g.firstDeny = err
	}
	g.mu.Unlock()
}

// denial returns the first trust denial seen during the run, if any. Schema
// compilers wrap loader errors in their own types, so callers surface this
// directly to keep the typed denial intact.
func (g *schemaGate) denial() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstDeny
}

func (g *schemaGate) fetches() []FetchRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]FetchRecord, len(g.records))
	copy(out, g.records)
	return out
}

func (g *schemaGate) resetRun() {
	g.mu.Lock()
	g.records = nil
	g.firstDeny = nil
	g.mu.Unlock()
}
