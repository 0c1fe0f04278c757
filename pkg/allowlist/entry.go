package allowlist

import "time"

// Trust is the stored decision for a schema URL.
type Trust int

const (
	// TrustPermanent marks a URL approved across runs; persisted.
	TrustPermanent Trust = iota
	// TrustSession marks a URL approved for the current process only.
	TrustSession
	// TrustDenied marks a URL explicitly refused; persisted.
	TrustDenied
)

// String returns the persisted wire value for the trust level. Session
// approvals share the "allow" value but are never written to disk.
func (t Trust) String() string {
	switch t {
	case TrustPermanent, TrustSession:
		return "allow"
	case TrustDenied:
		return "deny"
	}
	return "unknown"
}

// Provenance records how an entry got into the store. Reporting only; it never
// influences decisions.
type Provenance string

const (
	ProvenanceInteractive Provenance = "interactive"
	ProvenanceCLI         Provenance = "cli"
	ProvenanceImported    Provenance = "imported"
	ProvenanceCIAuto      Provenance = "ci_auto"
)

// Entry is one trust record keyed by normalized URL.
type Entry struct {
	URL        string
	Trust      Trust
	AddedAt    time.Time
	LastUsedAt time.Time
	Source     Provenance
}

// Persistent reports whether the entry survives process exit.
func (e Entry) Persistent() bool {
	return e.Trust == TrustPermanent || e.Trust == TrustDenied
}
