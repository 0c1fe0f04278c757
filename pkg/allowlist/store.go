package allowlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ImportMode selects how an imported allowlist combines with the current one.
type ImportMode int

const (
	// ImportReplace discards the current persistent entries and adopts the
	// imported set wholesale.
	ImportReplace ImportMode = iota
	// ImportMerge keeps the current set and applies imported entries only
	// where they are absent or strictly newer (by AddedAt).
	ImportMerge
)

// StoreOption customises Store construction.
type StoreOption func(*Store)

// WithClock injects the time source used for new and touched entries.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds the trust entries for schema URLs. Persistent entries are
// loaded from and flushed to a single JSON file; session entries exist only
// in memory for the process lifetime.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
	now     func() time.Time
}

// Load reads the allowlist at path. A missing file yields an empty store
// bound to that path; an unparseable file yields a CorruptError.
func Load(path string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("allowlist: read store %s: %w", path, err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	s.entries = entries
	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the entry for an already-normalized URL.
func (s *Store) Lookup(normalized string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[normalized]
	return e, ok
}

// Touch records a successful decision hit by advancing LastUsedAt and
// flushing the store. Session entries are only updated in memory.
func (s *Store) Touch(normalized string) error {
	s.mu.Lock()
	e, ok := s.entries[normalized]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	e.LastUsedAt = s.now()
	s.entries[normalized] = e
	persistent := e.Persistent()
	s.mu.Unlock()

	if !persistent {
		return nil
	}
	return s.Save()
}

// Add inserts or replaces a trust entry for the URL and flushes the store.
// Adding a URL that is already present refreshes AddedAt rather than
// duplicating; last write wins.
func (s *Store) Add(rawURL string, trust Trust, source Provenance) (Entry, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Entry{}, fmt.Errorf("allowlist: invalid url %q: %w", rawURL, err)
	}

	now := s.now()
	entry := Entry{
		URL:        normalized,
		Trust:      trust,
		AddedAt:    now,
		LastUsedAt: now,
		Source:     source,
	}

	s.mu.Lock()
	s.entries[normalized] = entry
	s.mu.Unlock()

	if !entry.Persistent() {
		return entry, nil
	}
	if err := s.Save(); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// AddSession records an in-memory approval that is never persisted.
func (s *Store) AddSession(rawURL string, source Provenance) (Entry, error) {
	return s.Add(rawURL, TrustSession, source)
}

// Remove deletes the entry for the URL if present and flushes the store. It
// reports whether a removal occurred; removing an absent URL is a no-op.
func (s *Store) Remove(rawURL string) (bool, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false, fmt.Errorf("allowlist: invalid url %q: %w", rawURL, err)
	}

	s.mu.Lock()
	_, existed := s.entries[normalized]
	delete(s.entries, normalized)
	s.mu.Unlock()

	if !existed {
		return false, nil
	}
	return true, s.Save()
}

// Save writes the persistent entries to the store path using an atomic
// temp-file-then-rename replace so a crash never truncates the live file.
func (s *Store) Save() error {
	return s.writeTo(s.path)
}

// Export writes the full persisted representation, sorted by URL, to an
// arbitrary destination.
func (s *Store) Export(path string) error {
	return s.writeTo(path)
}

// Import reads a file in the persisted format and applies it according to
// mode, then flushes the store. It returns the number of entries applied.
func (s *Store) Import(path string, mode ImportMode) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("allowlist: read import %s: %w", path, err)
	}
	imported, err := decodeEntries(data)
	if err != nil {
		return 0, &CorruptError{Path: path, Err: err}
	}

	s.mu.Lock()
	applied := 0
	switch mode {
	case ImportReplace:
		// Session entries survive a replace; only persistent state is swapped.
		kept := make(map[string]Entry)
		for url, e := range s.entries {
			if !e.Persistent() {
				kept[url] = e
			}
		}
		for url, e := range imported {
			kept[url] = e
			applied++
		}
		s.entries = kept
	case ImportMerge:
		for url, e := range imported {
			existing, ok := s.entries[url]
			if ok && !e.AddedAt.After(existing.AddedAt) {
				// Ties preserve the existing trust decision.
				continue
			}
			s.entries[url] = e
			applied++
		}
	default:
		s.mu.Unlock()
		return 0, fmt.Errorf("allowlist: unknown import mode %d", mode)
	}
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return 0, err
	}
	return applied, nil
}

// Cleanup removes permanent-allow entries whose LastUsedAt is older than the
// threshold and flushes the store. Explicit denials are never removed by age.
// It returns the number of entries removed.
func (s *Store) Cleanup(olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	removed := 0
	for url, e := range s.entries {
		if e.Trust != TrustPermanent {
			continue
		}
		if e.LastUsedAt.Before(cutoff) {
			delete(s.entries, url)
			removed++
		}
	}
	s.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	return removed, s.Save()
}

// Summary is a read-only view of the store for status reporting.
type Summary struct {
	Permanent int
	Session   int
	Denied    int
	Entries   []Entry
}

// Summary returns counts by decision kind plus all entries sorted by URL.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Summary{Entries: make([]Entry, 0, len(s.entries))}
	for _, e := range s.entries {
		switch e.Trust {
		case TrustPermanent:
			out.Permanent++
		case TrustSession:
			out.Session++
		case TrustDenied:
			out.Denied++
		}
		out.Entries = append(out.Entries, e)
	}
	sort.Slice(out.Entries, func(i, j int) bool {
		return out.Entries[i].URL < out.Entries[j].URL
	})
	return out
}

type fileEntry struct {
	Decision   string    `json:"decision"`
	AddedAt    time.Time `json:"addedAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	Source     string    `json:"source"`
}

type fileFormat struct {
	Entries map[string]fileEntry `json:"entries"`
}

func decodeEntries(data []byte) (map[string]Entry, error) {
	var payload fileFormat
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	entries := make(map[string]Entry, len(payload.Entries))
	for rawURL, fe := range payload.Entries {
		normalized, err := NormalizeURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", rawURL, err)
		}

		var trust Trust
		switch fe.Decision {
		case "allow":
			trust = TrustPermanent
		case "deny":
			trust = TrustDenied
		default:
			return nil, fmt.Errorf("entry %q: unknown decision %q", rawURL, fe.Decision)
		}

		entries[normalized] = Entry{
			URL:        normalized,
			Trust:      trust,
			AddedAt:    fe.AddedAt,
			LastUsedAt: fe.LastUsedAt,
			Source:     Provenance(fe.Source),
		}
	}
	return entries, nil
}

func (s *Store) writeTo(path string) error {
	s.mu.RLock()
	payload := fileFormat{Entries: make(map[string]fileEntry, len(s.entries))}
	for url, e := range s.entries {
		if !e.Persistent() {
			continue
		}
		payload.Entries[url] = fileEntry{
			Decision:   e.Trust.String(),
			AddedAt:    e.AddedAt,
			LastUsedAt: e.LastUsedAt,
			Source:     string(e.Source),
		}
	}
	s.mu.RUnlock()

	// Map keys marshal in sorted order, which keeps exports deterministic.
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("allowlist: encode store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &PermissionError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".allowlist-*.json")
	if err != nil {
		return &PermissionError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		// Best effort; present only if the rename never happened.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &PermissionError{Path: path, Err: err}
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return &PermissionError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PermissionError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &PermissionError{Path: path, Err: err}
	}
	return nil
}
