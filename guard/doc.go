// Package guard enforces brute-force protection: per-identifier login
// attempt counters with a sliding window, temporary lockout once the
// threshold is reached, and an independent suspicious-activity counter.
//
// All state lives in an injected Redis client — counters are shared and
// atomically incremented, so the guard behaves identically across
// horizontally scaled instances. There is no process-local fallback.
package guard
