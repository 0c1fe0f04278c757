package allowlist

import (
	"net"
	"net/url"
	"strings"
)

// Decision is the outcome of a trust lookup.
type Decision int

const (
	// Allow permits the fetch.
	Allow Decision = iota
	// Deny refuses the fetch.
	Deny
	// Ask means no stored decision applies; the caller must resolve the
	// question interactively before the fetch can proceed.
	Ask
)

// Rule names the first matching rule that produced a decision. Every denial
// is reported together with its rule so users know what to fix.
type Rule string

const (
	RuleInvalidURL     Rule = "invalid URL"
	RuleInsecureScheme Rule = "insecure scheme"
	RulePrivateNetwork Rule = "private or localhost address blocked"
	RuleAllowEntry     Rule = "allowlist entry"
	RuleDenyEntry      Rule = "explicit deny entry"
	RuleCIAuto         Rule = "CI auto-approval"
	RuleFailClosed     Rule = "fail closed: non-interactive and not allowlisted"
	RuleUserDeclined   Rule = "declined at prompt"
	RuleAsk            Rule = "no stored decision"
)

// Config is the immutable snapshot the engine consults. Environment state is
// resolved by the caller once at startup; the engine never reads it.
type Config struct {
	// InteractiveAllowlist enables prompting when no stored decision applies.
	InteractiveAllowlist bool
	// AutoApproveCI resolves Ask outcomes to a session allow without a prompt.
	AutoApproveCI bool
	// AllowHTTP permits plain http:// schema URLs.
	AllowHTTP bool
	// BlockLocalhost refuses loopback and private-network hosts outright.
	BlockLocalhost bool
}

// Verdict carries the decision, the rule that produced it, and the
// normalized URL used as the store key.
type Verdict struct {
	Decision Decision
	Rule     Rule
	URL      string
}

// Engine applies the trust rules, in order, against a store and a config
// snapshot. The first matching rule wins.
type Engine struct {
	store *Store
	cfg   Config
}

// NewEngine constructs a decision engine over the given store.
func NewEngine(store *Store, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg}
}

// Config returns the snapshot the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Decide evaluates the trust rules for a schema URL. Denials never create
// store entries; an allow hit refreshes the entry's LastUsedAt.
func (e *Engine) Decide(rawURL string) Verdict {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Verdict{Decision: Deny, Rule: RuleInvalidURL, URL: rawURL}
	}
	v := Verdict{URL: normalized}

	parsed, err := url.Parse(normalized)
	if err != nil {
		v.Decision, v.Rule = Deny, RuleInvalidURL
		return v
	}

	if parsed.Scheme != "https" && !(parsed.Scheme == "http" && e.cfg.AllowHTTP) {
		v.Decision, v.Rule = Deny, RuleInsecureScheme
		return v
	}

	if e.cfg.BlockLocalhost && isPrivateHost(parsed.Hostname()) {
		v.Decision, v.Rule = Deny, RulePrivateNetwork
		return v
	}

	if entry, ok := e.store.Lookup(normalized); ok {
		switch entry.Trust {
		case TrustPermanent, TrustSession:
			// LastUsedAt flushes are best effort; a read-only store must not
			// turn an allow into a failure.
			_ = e.store.Touch(normalized)
			v.Decision, v.Rule = Allow, RuleAllowEntry
			return v
		case TrustDenied:
			v.Decision, v.Rule = Deny, RuleDenyEntry
			return v
		}
	}

	if !e.cfg.InteractiveAllowlist {
		if e.cfg.AutoApproveCI {
			if _, err := e.store.AddSession(normalized, ProvenanceCIAuto); err == nil {
				v.Decision, v.Rule = Allow, RuleCIAuto
				return v
			}
		}
		v.Decision, v.Rule = Deny, RuleFailClosed
		return v
	}

	v.Decision, v.Rule = Ask, RuleAsk
	return v
}

// isPrivateHost reports whether the host points at loopback, link-local,
// unspecified, or RFC1918 space. Hostnames that are not IP literals are only
// matched against the well-known localhost names; DNS resolution happens at
// fetch time and is out of scope here.
func isPrivateHost(host string) bool {
	lowered := strings.ToLower(host)
	if lowered == "localhost" || strings.HasSuffix(lowered, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
