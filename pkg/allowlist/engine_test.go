package allowlist

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load(filepath.Join(t.TempDir(), "allowlist.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDecideRuleOrder(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		cfg     Config
		prepare func(t *testing.T, s *Store)
		want    Decision
		rule    Rule
	}{
		{
			name: "invalid url",
			url:  "http://[::1",
			cfg:  Config{InteractiveAllowlist: true},
			want: Deny,
			rule: RuleInvalidURL,
		},
		{
			name: "http denied by default",
			url:  "http://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: true},
			want: Deny,
			rule: RuleInsecureScheme,
		},
		{
			name: "file scheme denied even with allow-http",
			url:  "file:///etc/passwd",
			cfg:  Config{InteractiveAllowlist: true, AllowHTTP: true},
			want: Deny,
			rule: RuleInsecureScheme,
		},
		{
			name: "http allowed when enabled falls through to ask",
			url:  "http://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: true, AllowHTTP: true},
			want: Ask,
			rule: RuleAsk,
		},
		{
			name: "localhost blocked",
			url:  "https://localhost/s.json",
			cfg:  Config{InteractiveAllowlist: true, BlockLocalhost: true},
			want: Deny,
			rule: RulePrivateNetwork,
		},
		{
			name: "loopback ip blocked",
			url:  "https://127.0.0.1/s.json",
			cfg:  Config{InteractiveAllowlist: true, BlockLocalhost: true},
			want: Deny,
			rule: RulePrivateNetwork,
		},
		{
			name: "private range blocked",
			url:  "https://10.0.0.5/s.json",
			cfg:  Config{InteractiveAllowlist: true, BlockLocalhost: true},
			want: Deny,
			rule: RulePrivateNetwork,
		},
		{
			name: "localhost permitted when blocking disabled",
			url:  "https://localhost/s.json",
			cfg:  Config{InteractiveAllowlist: true, BlockLocalhost: false},
			want: Ask,
			rule: RuleAsk,
		},
		{
			name: "allow entry wins",
			url:  "https://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: true},
			prepare: func(t *testing.T, s *Store) {
				if _, err := s.Add("https://example.com/s.json", TrustPermanent, ProvenanceCLI); err != nil {
					t.Fatal(err)
				}
			},
			want: Allow,
			rule: RuleAllowEntry,
		},
		{
			name: "allow entry matches equivalent spelling",
			url:  "https://Example.COM:443/s.json",
			cfg:  Config{InteractiveAllowlist: true},
			prepare: func(t *testing.T, s *Store) {
				if _, err := s.Add("https://example.com/s.json", TrustPermanent, ProvenanceCLI); err != nil {
					t.Fatal(err)
				}
			},
			want: Allow,
			rule: RuleAllowEntry,
		},
		{
			name: "session entry allows",
			url:  "https://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: true},
			prepare: func(t *testing.T, s *Store) {
				if _, err := s.AddSession("https://example.com/s.json", ProvenanceInteractive); err != nil {
					t.Fatal(err)
				}
			},
			want: Allow,
			rule: RuleAllowEntry,
		},
		{
			name: "deny entry wins over interactivity",
			url:  "https://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: true},
			prepare: func(t *testing.T, s *Store) {
				if _, err := s.Add("https://example.com/s.json", TrustDenied, ProvenanceCLI); err != nil {
					t.Fatal(err)
				}
			},
			want: Deny,
			rule: RuleDenyEntry,
		},
		{
			name: "non-interactive fails closed",
			url:  "https://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: false},
			want: Deny,
			rule: RuleFailClosed,
		},
		{
			name: "ci auto-approval",
			url:  "https://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: false, AutoApproveCI: true},
			want: Allow,
			rule: RuleCIAuto,
		},
		{
			name: "interactive unknown url asks",
			url:  "https://example.com/s.json",
			cfg:  Config{InteractiveAllowlist: true},
			want: Ask,
			rule: RuleAsk,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			if tc.prepare != nil {
				tc.prepare(t, store)
			}
			engine := NewEngine(store, tc.cfg)

			got := engine.Decide(tc.url)
			if got.Decision != tc.want {
				t.Fatalf("Decide(%q).Decision = %v, want %v (rule %q)", tc.url, got.Decision, tc.want, got.Rule)
			}
			if got.Rule != tc.rule {
				t.Fatalf("Decide(%q).Rule = %q, want %q", tc.url, got.Rule, tc.rule)
			}
		})
	}
}

func TestDecideCIAutoApprovalIsSessionScoped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(store, Config{AutoApproveCI: true})

	if got := engine.Decide("https://ci.example.com/s.json"); got.Decision != Allow {
		t.Fatalf("expected CI auto-approval, got %+v", got)
	}

	entry, ok := store.Lookup("https://ci.example.com/s.json")
	if !ok {
		t.Fatal("CI approval did not record a session entry")
	}
	if entry.Trust != TrustSession || entry.Source != ProvenanceCIAuto {
		t.Fatalf("CI entry = %+v, want session trust with ci_auto provenance", entry)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Lookup("https://ci.example.com/s.json"); ok {
		t.Fatal("CI auto-approval must not persist across runs")
	}
}

func TestDecideAllowHitTouchesEntry(t *testing.T) {
	clock := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store, err := Load(filepath.Join(t.TempDir(), "allowlist.json"), WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add("https://example.com/s.json", TrustPermanent, ProvenanceCLI); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(48 * time.Hour)
	engine := NewEngine(store, Config{InteractiveAllowlist: true})
	if got := engine.Decide("https://example.com/s.json"); got.Decision != Allow {
		t.Fatalf("expected allow, got %+v", got)
	}

	entry, _ := store.Lookup("https://example.com/s.json")
	if !entry.LastUsedAt.Equal(clock) {
		t.Fatalf("allow hit did not advance LastUsedAt: %v", entry.LastUsedAt)
	}
}

func TestDecideDenialsNeverCreateEntries(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(store, Config{InteractiveAllowlist: false, BlockLocalhost: true})

	engine.Decide("http://example.com/s.json")
	engine.Decide("https://localhost/s.json")
	engine.Decide("https://unknown.example.com/s.json")

	if got := store.Summary(); len(got.Entries) != 0 {
		t.Fatalf("denials created store entries: %+v", got.Entries)
	}
}
