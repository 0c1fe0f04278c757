package allowlist

import (
	"context"
	"log/slog"

	"github.com/its-lang/its-cli/pkg/allowlist/prompt"
)

// promptRetries bounds how often a failing prompt is retried before the
// outcome defaults to deny.
const promptRetries = 3

// ResolverOption customises the resolver.
type ResolverOption func(*Resolver)

// WithPrompter injects the interactive prompt used to settle Ask outcomes.
// Without a prompter every Ask resolves to deny.
func WithPrompter(p prompt.Prompter) ResolverOption {
	return func(r *Resolver) {
		r.prompter = p
	}
}

// WithLogger injects the logger used for diagnostic output.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver turns engine verdicts into terminal allow/deny answers. Ask is
// always settled here, by prompting or by failing closed, so the compiler
// callback below never sees an unresolved decision.
type Resolver struct {
	engine   *Engine
	store    *Store
	prompter prompt.Prompter
	logger   *slog.Logger
}

// NewResolver constructs a resolver over the engine and its backing store.
func NewResolver(engine *Engine, store *Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		engine: engine,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers whether the schema URL may be fetched. A nil return means
// allow; every other return is a denial that names the URL and the rule that
// triggered it. Interactive "allow permanently" answers are persisted
// synchronously before Resolve returns, so a crash right after the prompt
// cannot lose the decision.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) error {
	verdict := r.engine.Decide(rawURL)

	switch verdict.Decision {
	case Allow:
		r.logger.Debug("schema allowed", "url", verdict.URL, "rule", string(verdict.Rule))
		return nil
	case Deny:
		r.logger.Debug("schema denied", "url", verdict.URL, "rule", string(verdict.Rule))
		if verdict.Rule == RuleInsecureScheme {
			return &DeniedError{URL: verdict.URL, Rule: verdict.Rule, Err: &InsecureSchemeError{URL: verdict.URL}}
		}
		return &DeniedError{URL: verdict.URL, Rule: verdict.Rule}
	}

	return r.resolveAsk(ctx, verdict.URL)
}

func (r *Resolver) resolveAsk(ctx context.Context, normalized string) error {
	// CI auto-approval settles every ask as a session allow, prompt or not.
	if r.engine.Config().AutoApproveCI {
		if _, err := r.store.AddSession(normalized, ProvenanceCIAuto); err != nil {
			return err
		}
		r.logger.Debug("schema auto-approved for session", "url", normalized, "rule", string(RuleCIAuto))
		return nil
	}

	if r.prompter == nil {
		return &DeniedError{URL: normalized, Rule: RuleFailClosed}
	}

	var lastErr error
	for attempt := 1; attempt <= promptRetries; attempt++ {
		choice, err := r.prompter.Ask(ctx, normalized)
		if err != nil {
			if ctx.Err() != nil || err == prompt.ErrInterrupted {
				// Cancellation must leave the allowlist file untouched.
				return &DeniedError{URL: normalized, Rule: RuleAsk, Err: err}
			}
			lastErr = err
			r.logger.Warn("allowlist prompt failed", "url", normalized, "attempt", attempt, "error", err)
			continue
		}

		switch choice {
		case prompt.ChoiceAllowPermanent:
			if _, err := r.store.Add(normalized, TrustPermanent, ProvenanceInteractive); err != nil {
				return err
			}
			return nil
		case prompt.ChoiceAllowSession:
			if _, err := r.store.AddSession(normalized, ProvenanceInteractive); err != nil {
				return err
			}
			return nil
		default:
			return &DeniedError{URL: normalized, Rule: RuleUserDeclined}
		}
	}

	exhausted := &PromptExhaustedError{URL: normalized, Attempts: promptRetries}
	r.logger.Warn("allowlist prompt exhausted, denying", "url", normalized, "error", lastErr)
	return &DeniedError{URL: normalized, Rule: RuleFailClosed, Err: exhausted}
}
