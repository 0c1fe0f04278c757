package allowlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/its-lang/its-cli/pkg/allowlist/prompt"
)

// scriptedPrompter returns queued answers in order; errors count as answers.
type scriptedPrompter struct {
	answers []prompt.Choice
	errs    []error
	calls   int
}

func (p *scriptedPrompter) Ask(ctx context.Context, url string) (prompt.Choice, error) {
	i := p.calls
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	var choice prompt.Choice
	if i < len(p.answers) {
		choice = p.answers[i]
	}
	return choice, err
}

func newTestResolver(t *testing.T, cfg Config, p prompt.Prompter) (*Resolver, *Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allowlist.json")
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	opts := []ResolverOption{}
	if p != nil {
		opts = append(opts, WithPrompter(p))
	}
	return NewResolver(NewEngine(store, cfg), store, opts...), store, path
}

func TestResolveAllowEntryReturnsNil(t *testing.T) {
	r, store, _ := newTestResolver(t, Config{InteractiveAllowlist: true}, nil)
	if _, err := store.Add("https://example.com/s.json", TrustPermanent, ProvenanceCLI); err != nil {
		t.Fatal(err)
	}
	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("Resolve allowlisted URL: %v", err)
	}
}

func TestResolveInsecureSchemeWrapsTypedError(t *testing.T) {
	r, _, _ := newTestResolver(t, Config{InteractiveAllowlist: true}, nil)

	err := r.Resolve(context.Background(), "http://example.com/s.json")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Rule != RuleInsecureScheme {
		t.Fatalf("rule = %q, want insecure scheme", denied.Rule)
	}
	var insecure *InsecureSchemeError
	if !errors.As(err, &insecure) {
		t.Fatalf("denial does not wrap InsecureSchemeError: %v", err)
	}
}

func TestResolveAskWithoutPrompterFailsClosed(t *testing.T) {
	r, _, _ := newTestResolver(t, Config{InteractiveAllowlist: true}, nil)

	err := r.Resolve(context.Background(), "https://example.com/s.json")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Rule != RuleFailClosed {
		t.Fatalf("rule = %q, want fail closed", denied.Rule)
	}
}

func TestResolveCIAutoApprovalWithInteractiveEnabled(t *testing.T) {
	// Default interactive config plus auto-approval and no terminal: the
	// standard CI setup. The ask must settle as a session allow, not a denial.
	r, store, path := newTestResolver(t, Config{InteractiveAllowlist: true, AutoApproveCI: true}, nil)

	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("Resolve under CI auto-approval: %v", err)
	}

	entry, ok := store.Lookup("https://example.com/s.json")
	if !ok {
		t.Fatal("auto-approval did not record an entry")
	}
	if entry.Trust != TrustSession || entry.Source != ProvenanceCIAuto {
		t.Fatalf("entry = %+v, want session trust with ci_auto provenance", entry)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("CI auto-approval touched the store file: %v", err)
	}
}

func TestResolveCIAutoApprovalSkipsPrompt(t *testing.T) {
	p := &scriptedPrompter{answers: []prompt.Choice{prompt.ChoiceDeny}}
	r, store, _ := newTestResolver(t, Config{InteractiveAllowlist: true, AutoApproveCI: true}, p)

	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("prompter called %d times, want 0 under auto-approval", p.calls)
	}
	if entry, ok := store.Lookup("https://example.com/s.json"); !ok || entry.Trust != TrustSession {
		t.Fatalf("session entry missing: %+v (ok=%t)", entry, ok)
	}
}

func TestResolvePermanentApprovalPersistsBeforeReturn(t *testing.T) {
	p := &scriptedPrompter{answers: []prompt.Choice{prompt.ChoiceAllowPermanent}}
	r, _, path := newTestResolver(t, Config{InteractiveAllowlist: true}, p)

	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// The decision must already be on disk when Resolve returns.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := reloaded.Lookup("https://example.com/s.json")
	if !ok {
		t.Fatal("permanent approval not persisted")
	}
	if entry.Trust != TrustPermanent || entry.Source != ProvenanceInteractive {
		t.Fatalf("persisted entry = %+v", entry)
	}
}

func TestResolveSessionApprovalStaysInMemory(t *testing.T) {
	p := &scriptedPrompter{answers: []prompt.Choice{prompt.ChoiceAllowSession}}
	r, store, path := newTestResolver(t, Config{InteractiveAllowlist: true}, p)

	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry, ok := store.Lookup("https://example.com/s.json"); !ok || entry.Trust != TrustSession {
		t.Fatalf("session approval missing from memory: %+v (ok=%t)", entry, ok)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("session approval touched the store file: %v", err)
	}

	// Same URL again in the same process is allowed without another prompt.
	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("prompter called %d times, want 1", p.calls)
	}
}

func TestResolveDeclineDeniesWithoutStoreWrites(t *testing.T) {
	p := &scriptedPrompter{answers: []prompt.Choice{prompt.ChoiceDeny}}
	r, store, _ := newTestResolver(t, Config{InteractiveAllowlist: true}, p)

	err := r.Resolve(context.Background(), "https://example.com/s.json")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Rule != RuleUserDeclined {
		t.Fatalf("rule = %q, want declined at prompt", denied.Rule)
	}
	if got := store.Summary(); len(got.Entries) != 0 {
		t.Fatalf("a declined prompt must not create entries: %+v", got.Entries)
	}
}

func TestResolveInterruptDeniesImmediately(t *testing.T) {
	p := &scriptedPrompter{errs: []error{prompt.ErrInterrupted}}
	r, store, path := newTestResolver(t, Config{InteractiveAllowlist: true}, p)

	err := r.Resolve(context.Background(), "https://example.com/s.json")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("interrupt must not be retried, prompter called %d times", p.calls)
	}
	if got := store.Summary(); len(got.Entries) != 0 {
		t.Fatal("interrupt created store entries")
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("interrupt touched the store file")
	}
}

func TestResolveRetriesThenExhausts(t *testing.T) {
	broken := errors.New("terminal went away")
	p := &scriptedPrompter{errs: []error{broken, broken, broken}}
	r, _, _ := newTestResolver(t, Config{InteractiveAllowlist: true}, p)

	err := r.Resolve(context.Background(), "https://example.com/s.json")
	var exhausted *PromptExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected PromptExhaustedError, got %v", err)
	}
	if exhausted.Attempts != promptRetries {
		t.Fatalf("attempts = %d, want %d", exhausted.Attempts, promptRetries)
	}
	if p.calls != promptRetries {
		t.Fatalf("prompter called %d times, want %d", p.calls, promptRetries)
	}
}

func TestResolveTransientPromptFailureRecovers(t *testing.T) {
	p := &scriptedPrompter{
		errs:    []error{errors.New("redraw failed"), nil},
		answers: []prompt.Choice{prompt.ChoiceDeny, prompt.ChoiceAllowSession},
	}
	r, store, _ := newTestResolver(t, Config{InteractiveAllowlist: true}, p)

	if err := r.Resolve(context.Background(), "https://example.com/s.json"); err != nil {
		t.Fatalf("Resolve after transient failure: %v", err)
	}
	if entry, ok := store.Lookup("https://example.com/s.json"); !ok || entry.Trust != TrustSession {
		t.Fatalf("recovered approval missing: %+v (ok=%t)", entry, ok)
	}
}
