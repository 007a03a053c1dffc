// Package session tracks one record per logged-in device context and
// enforces the per-user concurrent-session limit and idle timeout.
//
// The authoritative session record lives in the relational store behind
// [Repository]. A per-user Redis sorted set (score = last-activity time)
// mirrors the active sessions so the eviction decision — evict the
// least-recently-active session when the limit would be exceeded — happens
// atomically in a single Lua script, even under simultaneous logins from
// multiple instances. The relational store is reconciled from the script's
// verdict afterwards.
package session
