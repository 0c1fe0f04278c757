package allowlist

import "fmt"

// CorruptError reports a persisted allowlist file that exists but cannot be
// parsed. The file is surfaced, never auto-repaired: silently discarding
// trust decisions would be a security regression.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("allowlist: store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// PermissionError reports a store that cannot be written.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("allowlist: cannot write store %s: %v (check file permissions or set ITS_ALLOWLIST_FILE to a writable path)", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// InsecureSchemeError reports a non-HTTPS schema URL rejected before any
// allowlist lookup took place.
type InsecureSchemeError struct {
	URL string
}

func (e *InsecureSchemeError) Error() string {
	return fmt.Sprintf("allowlist: insecure scheme for %s: use https or enable allow-http", e.URL)
}

// PromptExhaustedError reports that the interactive prompt failed repeatedly;
// the decision falls back to deny.
type PromptExhaustedError struct {
	URL      string
	Attempts int
}

func (e *PromptExhaustedError) Error() string {
	return fmt.Sprintf("allowlist: prompt for %s failed after %d attempts, denying", e.URL, e.Attempts)
}

// DeniedError is the terminal denial handed to the compiler shim. It always
// names the offending URL and the rule that triggered the denial so the user
// can take corrective action.
type DeniedError struct {
	URL  string
	Rule Rule
	Err  error
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("allowlist: schema %s denied (%s)", e.URL, e.Rule)
}

func (e *DeniedError) Unwrap() error { return e.Err }
