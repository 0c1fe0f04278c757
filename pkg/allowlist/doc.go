// Package allowlist implements the schema trust store and the decision engine
// that gates remote schema fetches. Trust decisions are keyed by normalized
// URL and persisted as JSON; session-scoped approvals live only in memory.
package allowlist
