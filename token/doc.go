// Package token issues and verifies the signed bearer tokens of the
// authentication core: short-lived access tokens and long-lived refresh
// tokens, both compact JWTs.
//
// Access-token verification fails uniformly — callers cannot distinguish a
// bad signature from an expired token, which keeps the error channel free of
// oracle leakage. Refresh-token verification reports expiry distinctly
// because the rotation path needs it.
//
// The signing key is loaded once at construction and never leaves the
// Manager. Raw refresh tokens are returned to the caller exactly once; only
// their SHA-256 hashes are ever persisted.
package token
